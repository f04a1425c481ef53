package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

// ResolveContact returns the e-mail of a rostered staff member.
func (s *Store) ResolveContact(ctx context.Context, name string) (string, error) {
	var rec StaffRecord
	err := s.DB.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errs.NotFound("no roster entry for %q", name)
	}
	if err != nil {
		return "", errs.Storage(err, "resolve contact %q", name)
	}
	return rec.Email, nil
}

// Roster returns staff names in the order they were added.
func (s *Store) Roster(ctx context.Context) ([]string, error) {
	staff, err := s.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(staff))
	for _, m := range staff {
		names = append(names, m.Name)
	}
	return names, nil
}

// UpsertStaff adds a roster entry or refreshes its e-mail.
func (s *Store) UpsertStaff(ctx context.Context, m models.StaffMember) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"email"}),
	}).Create(&StaffRecord{Name: m.Name, Email: m.Email}).Error
	return errs.Storage(err, "save staff %q", m.Name)
}

// ListStaff returns the roster.
func (s *Store) ListStaff(ctx context.Context) ([]models.StaffMember, error) {
	var records []StaffRecord
	if err := s.DB.WithContext(ctx).Order("id asc").Find(&records).Error; err != nil {
		return nil, errs.Storage(err, "list staff")
	}
	out := make([]models.StaffMember, 0, len(records))
	for _, r := range records {
		out = append(out, models.StaffMember{Name: r.Name, Email: r.Email})
	}
	return out, nil
}

// DeleteStaff removes a roster entry when name and e-mail both match.
func (s *Store) DeleteStaff(ctx context.Context, name, email string) error {
	res := s.DB.WithContext(ctx).Where("name = ? AND email = ?", name, email).Delete(&StaffRecord{})
	if res.Error != nil {
		return errs.Storage(res.Error, "delete staff %q", name)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("staff %q with email %q not found", name, email)
	}
	return nil
}

// AddRequester saves an organization; an identical name and e-mail is a no-op.
func (s *Store) AddRequester(ctx context.Context, r models.Requester) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&RequesterRecord{Name: r.Name, Email: r.Email, ListSize: r.ListSize}).Error
	return errs.Storage(err, "save requester %q", r.Name)
}

// ListRequesters returns organizations sorted by name.
func (s *Store) ListRequesters(ctx context.Context) ([]models.Requester, error) {
	var records []RequesterRecord
	if err := s.DB.WithContext(ctx).Order("name asc").Find(&records).Error; err != nil {
		return nil, errs.Storage(err, "list requesters")
	}
	out := make([]models.Requester, 0, len(records))
	for _, r := range records {
		out = append(out, models.Requester{Name: r.Name, Email: r.Email, ListSize: r.ListSize})
	}
	return out, nil
}

// DeleteRequester removes an organization when name and e-mail both match.
func (s *Store) DeleteRequester(ctx context.Context, name, email string) error {
	res := s.DB.WithContext(ctx).Where("name = ? AND email = ?", name, email).Delete(&RequesterRecord{})
	if res.Error != nil {
		return errs.Storage(res.Error, "delete requester %q", name)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("requester %q with email %q not found", name, email)
	}
	return nil
}

// AddCoverRequest stores a submitted cover request.
func (s *Store) AddCoverRequest(ctx context.Context, req models.CoverRequest) error {
	rec := CoverRequestRecord{
		ID:          req.ID,
		CoverDate:   models.CalendarDay(req.CoverDate),
		Requester:   req.Requester,
		Name:        req.Name,
		Session:     string(req.Session),
		Reason:      req.Reason,
		Description: req.Description,
		SubmittedAt: req.SubmittedAt,
	}
	return errs.Storage(s.DB.WithContext(ctx).Create(&rec).Error, "save cover request")
}

// ListCoverRequests returns cover requests newest first.
func (s *Store) ListCoverRequests(ctx context.Context) ([]models.CoverRequest, error) {
	var records []CoverRequestRecord
	if err := s.DB.WithContext(ctx).Order("submitted_at desc").Find(&records).Error; err != nil {
		return nil, errs.Storage(err, "list cover requests")
	}
	out := make([]models.CoverRequest, 0, len(records))
	for _, r := range records {
		out = append(out, models.CoverRequest{
			ID:          r.ID,
			CoverDate:   r.CoverDate,
			Requester:   r.Requester,
			Name:        r.Name,
			Session:     models.Shift(r.Session),
			Reason:      r.Reason,
			Description: r.Description,
			SubmittedAt: r.SubmittedAt,
		})
	}
	return out, nil
}

// FindAdmin looks an admin up by username.
func (s *Store) FindAdmin(ctx context.Context, username string) (AdminUser, error) {
	var user AdminUser
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AdminUser{}, errs.NotFound("admin %q not found", username)
	}
	if err != nil {
		return AdminUser{}, errs.Storage(err, "find admin")
	}
	return user, nil
}

// CountAdmins returns how many admin accounts exist.
func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&AdminUser{}).Count(&count).Error
	return count, errs.Storage(err, "count admins")
}

// CreateAdmin stores an admin account.
func (s *Store) CreateAdmin(ctx context.Context, username, passwordHash string) error {
	err := s.DB.WithContext(ctx).Create(&AdminUser{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}).Error
	return errs.Storage(err, "create admin %q", username)
}
