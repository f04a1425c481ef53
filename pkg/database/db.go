package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arnavshah/pharmacal-api/pkg/config"
	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

// SlotRecord represents the slots table
type SlotRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UniqueCode       string    `gorm:"uniqueIndex;not null" json:"unique_code"`
	Date             time.Time `gorm:"index;not null" json:"date"`
	Shift            string    `gorm:"size:2;not null" json:"shift"`
	ColumnIndex      int       `gorm:"not null" json:"column"`
	AssignedName     *string   `json:"assigned_name"`
	Booked           bool      `gorm:"not null" json:"booked"`
	RequesterName    string    `json:"requester_name"`
	RequesterContact string    `json:"requester_contact"`
	BookingNonce     string    `gorm:"size:36" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (SlotRecord) TableName() string { return "slots" }

// StaffRecord represents the staff roster table
type StaffRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (StaffRecord) TableName() string { return "staff" }

// RequesterRecord represents the requesting organizations table
type RequesterRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex:idx_requester_name_email;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex:idx_requester_name_email;not null" json:"email"`
	ListSize  int       `gorm:"default:0" json:"list_size"`
	CreatedAt time.Time `json:"created_at"`
}

func (RequesterRecord) TableName() string { return "requesters" }

// CoverRequestRecord represents the cover_requests table
type CoverRequestRecord struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	CoverDate   time.Time `gorm:"not null" json:"cover_date"`
	Requester   string    `gorm:"not null" json:"requester"`
	Name        string    `gorm:"not null" json:"name"`
	Session     string    `gorm:"size:2;not null" json:"session"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	SubmittedAt time.Time `gorm:"index" json:"submitted_at"`
}

func (CoverRequestRecord) TableName() string { return "cover_requests" }

// AdminUser represents the admin_users table
type AdminUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Open connects to postgres when a DSN is configured and to sqlite otherwise,
// then migrates the schema.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	if cfg.URL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	} else {
		db, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	}
	if err != nil {
		return nil, errs.Storage(err, "connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&SlotRecord{}, &StaffRecord{}, &RequesterRecord{}, &CoverRequestRecord{}, &AdminUser{})
	return errs.Storage(err, "migrate schema")
}

func slotFromRecord(r SlotRecord) models.Slot {
	s := models.Slot{
		UniqueCode:       r.UniqueCode,
		Date:             models.CalendarDay(r.Date),
		Shift:            models.Shift(r.Shift),
		ColumnIndex:      r.ColumnIndex,
		Booked:           r.Booked,
		RequesterName:    r.RequesterName,
		RequesterContact: r.RequesterContact,
		BookingNonce:     r.BookingNonce,
	}
	if r.AssignedName != nil {
		s.AssignedName = models.AssigneeFromRaw(*r.AssignedName)
	}
	return s
}

func recordFromSlot(s models.Slot) SlotRecord {
	return SlotRecord{
		UniqueCode:       s.UniqueCode,
		Date:             models.CalendarDay(s.Date),
		Shift:            string(s.Shift),
		ColumnIndex:      s.ColumnIndex,
		AssignedName:     s.AssignedName,
		Booked:           s.Booked,
		RequesterName:    s.RequesterName,
		RequesterContact: s.RequesterContact,
		BookingNonce:     s.BookingNonce,
	}
}
