package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

// MemoryStore keeps everything in process. It backs tests and local demos
// and follows the same conditional-write rules as Store.
type MemoryStore struct {
	mu         sync.Mutex
	slots      map[string]models.Slot
	staff      []models.StaffMember
	requesters []models.Requester
	covers     []models.CoverRequest
	admins     map[string]AdminUser
	faults     map[string]error
}

// NewMemoryStore returns a store seeded with slots.
func NewMemoryStore(slots ...models.Slot) *MemoryStore {
	m := &MemoryStore{
		slots:  make(map[string]models.Slot),
		admins: make(map[string]AdminUser),
		faults: make(map[string]error),
	}
	for _, s := range slots {
		m.slots[s.UniqueCode] = cloneSlot(s)
	}
	return m
}

// FailOn makes the named operation fail with err for code. Operations are
// "read", "create", "update", "delete", "book", "cancel" and "find".
// A nil err clears the fault.
func (m *MemoryStore) FailOn(op, code string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op+":"+code)
		return
	}
	m.faults[op+":"+code] = err
}

// Remove drops a slot without any checks, simulating another writer.
func (m *MemoryStore) Remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, code)
}

func (m *MemoryStore) fault(op, code string) error {
	if err, ok := m.faults[op+":"+code]; ok {
		return errs.Storage(err, "%s %s", op, code)
	}
	return nil
}

func (m *MemoryStore) ReadSlots(ctx context.Context) ([]models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("read", ""); err != nil {
		return nil, err
	}
	return m.sorted(func(models.Slot) bool { return true }), nil
}

func (m *MemoryStore) ListSlots(ctx context.Context, from, to time.Time) ([]models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, to = models.CalendarDay(from), models.CalendarDay(to)
	return m.sorted(func(s models.Slot) bool {
		return !s.Date.Before(from) && !s.Date.After(to)
	}), nil
}

func (m *MemoryStore) sorted(keep func(models.Slot) bool) []models.Slot {
	out := make([]models.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		if keep(s) {
			out = append(out, cloneSlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Less(kj) || kj.Less(ki) {
			return ki.Less(kj)
		}
		return out[i].UniqueCode < out[j].UniqueCode
	})
	return out
}

func (m *MemoryStore) FindSlotByCode(ctx context.Context, code string) (models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("find", code); err != nil {
		return models.Slot{}, err
	}
	s, ok := m.slots[code]
	if !ok {
		return models.Slot{}, errs.NotFound("slot %s not found", code)
	}
	return cloneSlot(s), nil
}

func (m *MemoryStore) CreateSlot(ctx context.Context, slot models.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("create", slot.UniqueCode); err != nil {
		return err
	}
	slot = cloneSlot(slot)
	slot.Date = models.CalendarDay(slot.Date)
	if held, ok := m.slots[slot.UniqueCode]; ok && (held.Booked || held.Key() != slot.Key()) {
		return createConflict(held, slot)
	}
	slot.Booked = false
	slot.RequesterName, slot.RequesterContact, slot.BookingNonce = "", "", ""
	m.slots[slot.UniqueCode] = slot
	return nil
}

func (m *MemoryStore) UpdateSlotAssignee(ctx context.Context, code, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("update", code); err != nil {
		return err
	}
	s, ok := m.slots[code]
	if !ok {
		return errs.NotFound("slot %s not found", code)
	}
	if s.Booked {
		return conditionError(s, "reassign")
	}
	s.AssignedName = models.Name(name)
	m.slots[code] = s
	return nil
}

func (m *MemoryStore) DeleteSlot(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("delete", code); err != nil {
		return err
	}
	s, ok := m.slots[code]
	if !ok {
		return errs.NotFound("slot %s not found", code)
	}
	if s.Booked {
		return conditionError(s, "delete")
	}
	delete(m.slots, code)
	return nil
}

func (m *MemoryStore) MarkBooked(ctx context.Context, code, requesterName, requesterContact, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("book", code); err != nil {
		return err
	}
	s, ok := m.slots[code]
	if !ok {
		return errs.NotFound("slot %s not found", code)
	}
	if s.Booked || !models.IsAvailable(s) {
		return conditionError(s, "book")
	}
	s.Booked = true
	s.RequesterName, s.RequesterContact, s.BookingNonce = requesterName, requesterContact, nonce
	m.slots[code] = s
	return nil
}

func (m *MemoryStore) ClearBooking(ctx context.Context, code, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("cancel", code); err != nil {
		return err
	}
	s, ok := m.slots[code]
	if !ok {
		return errs.NotFound("slot %s not found", code)
	}
	if !s.Booked || (nonce != "" && s.BookingNonce != nonce) {
		return cancelConflict(s, nonce)
	}
	s.Booked = false
	s.RequesterName, s.RequesterContact, s.BookingNonce = "", "", ""
	m.slots[code] = s
	return nil
}

func (m *MemoryStore) ImportSlot(ctx context.Context, slot models.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot = cloneSlot(slot)
	slot.Date = models.CalendarDay(slot.Date)
	slot.BookingNonce = ""
	if held, ok := m.slots[slot.UniqueCode]; ok && held.Booked && slot.Booked &&
		held.RequesterContact == slot.RequesterContact {
		slot.BookingNonce = held.BookingNonce
	}
	m.slots[slot.UniqueCode] = slot
	return nil
}

func (m *MemoryStore) ResolveContact(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.staff {
		if s.Name == name {
			return s.Email, nil
		}
	}
	return "", errs.NotFound("no roster entry for %q", name)
}

func (m *MemoryStore) Roster(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.staff))
	for _, s := range m.staff {
		names = append(names, s.Name)
	}
	return names, nil
}

func (m *MemoryStore) UpsertStaff(ctx context.Context, member models.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.staff {
		if s.Name == member.Name {
			m.staff[i].Email = member.Email
			return nil
		}
	}
	m.staff = append(m.staff, member)
	return nil
}

func (m *MemoryStore) ListStaff(ctx context.Context) ([]models.StaffMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.StaffMember(nil), m.staff...), nil
}

func (m *MemoryStore) DeleteStaff(ctx context.Context, name, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.staff {
		if s.Name == name && s.Email == email {
			m.staff = append(m.staff[:i], m.staff[i+1:]...)
			return nil
		}
	}
	return errs.NotFound("staff %q with email %q not found", name, email)
}

func (m *MemoryStore) AddRequester(ctx context.Context, r models.Requester) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requesters {
		if existing.Name == r.Name && existing.Email == r.Email {
			return nil
		}
	}
	m.requesters = append(m.requesters, r)
	return nil
}

func (m *MemoryStore) ListRequesters(ctx context.Context) ([]models.Requester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Requester(nil), m.requesters...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) DeleteRequester(ctx context.Context, name, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.requesters {
		if r.Name == name && r.Email == email {
			m.requesters = append(m.requesters[:i], m.requesters[i+1:]...)
			return nil
		}
	}
	return errs.NotFound("requester %q with email %q not found", name, email)
}

func (m *MemoryStore) AddCoverRequest(ctx context.Context, req models.CoverRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.CoverDate = models.CalendarDay(req.CoverDate)
	m.covers = append(m.covers, req)
	return nil
}

func (m *MemoryStore) ListCoverRequests(ctx context.Context) ([]models.CoverRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.CoverRequest(nil), m.covers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *MemoryStore) FindAdmin(ctx context.Context, username string) (AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.admins[username]
	if !ok {
		return AdminUser{}, errs.NotFound("admin %q not found", username)
	}
	return user, nil
}

func (m *MemoryStore) CountAdmins(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.admins)), nil
}

func (m *MemoryStore) CreateAdmin(ctx context.Context, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[username] = AdminUser{
		ID:           uint(len(m.admins) + 1),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	return nil
}

func cloneSlot(s models.Slot) models.Slot {
	if s.AssignedName != nil {
		s.AssignedName = models.Name(*s.AssignedName)
	}
	return s
}
