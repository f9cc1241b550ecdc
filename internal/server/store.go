package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/muurk/espfw/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// User is an account allowed to log in.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:60;not null"`
	Email        string `gorm:"size:120;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:64;not null"`
	Role         string `gorm:"size:20;default:user"`
	CreatedAt    time.Time
}

// SetPassword stores a bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Model converts the record to its wire form.
func (u *User) Model() models.User {
	return models.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Project groups devices.
type Project struct {
	ID   string `gorm:"primaryKey;size:36"`
	Name string `gorm:"size:120;not null"`
}

// Model converts the record to its wire form.
func (p *Project) Model() models.Project {
	return models.Project{ID: p.ID, ProjectName: p.Name}
}

// Device is a registered ESP device.
type Device struct {
	ID        string `gorm:"primaryKey;size:36"`
	DeviceID  string `gorm:"size:64;uniqueIndex;not null"`
	Name      string `gorm:"size:120"`
	ProjectID string `gorm:"size:36;index"`
	Status    string `gorm:"size:20"`
	CreatedAt time.Time
}

// Model converts the record to its wire form.
func (d *Device) Model() models.Device {
	created := d.CreatedAt
	return models.Device{
		ID:          d.ID,
		DeviceID:    d.DeviceID,
		Name:        d.Name,
		Project:     d.ProjectID,
		Status:      d.Status,
		DateCreated: &created,
	}
}

// Firmware is the metadata of a stored binary. The binary lives in the
// storage directory under FileName.
type Firmware struct {
	ID               string `gorm:"primaryKey;size:36"`
	Version          string `gorm:"size:64;not null;uniqueIndex:idx_device_version"`
	Description      string
	EspID            string `gorm:"size:64;uniqueIndex:idx_device_version"`
	FileName         string `gorm:"size:255;not null"`
	OriginalFileName string `gorm:"size:255"`
	FileSize         int64
	UploadedDate     time.Time `gorm:"index"`
}

// Model converts the record to its wire form.
func (f *Firmware) Model() models.Firmware {
	size := f.FileSize
	uploaded := f.UploadedDate
	return models.Firmware{
		ID:               f.ID,
		Version:          f.Version,
		Description:      f.Description,
		EspID:            f.EspID,
		FileName:         f.FileName,
		OriginalFileName: f.OriginalFileName,
		FileSize:         &size,
		UploadedDate:     &uploaded,
	}
}

// Store keeps metadata in sqlite and binaries on disk.
type Store struct {
	db  *gorm.DB
	dir string
}

// OpenStore opens (creating if needed) the database at dbPath and the
// binary directory dir.
func OpenStore(dbPath, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&User{}, &Project{}, &Device{}, &Firmware{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path returns where the binary of f is stored.
func (s *Store) Path(f *Firmware) string {
	return filepath.Join(s.dir, f.FileName)
}

// Firmwares returns every firmware, newest upload first.
func (s *Store) Firmwares(ctx context.Context) ([]Firmware, error) {
	var out []Firmware
	err := s.db.WithContext(ctx).Order("uploaded_date DESC").Find(&out).Error
	return out, err
}

// Firmware returns one firmware by id.
func (s *Store) Firmware(ctx context.Context, id string) (*Firmware, error) {
	var f Firmware
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// VersionExists reports whether espID already has a firmware with version.
func (s *Store) VersionExists(ctx context.Context, espID, version string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Firmware{}).
		Where("esp_id = ? AND version = ?", espID, version).
		Count(&count).Error
	return count > 0, err
}

// CreateFirmware writes the binary read from r and inserts f. FileName and
// FileSize are filled in. The binary is removed again if the insert fails.
func (s *Store) CreateFirmware(ctx context.Context, f *Firmware, r io.Reader) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	ext := strings.ToLower(filepath.Ext(f.OriginalFileName))
	if ext == "" {
		ext = ".bin"
	}
	f.FileName = f.ID + ext

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store firmware binary: %w", err)
	}
	path := s.Path(f)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store firmware binary: %w", err)
	}
	f.FileSize = n

	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to save firmware record: %w", err)
	}
	return nil
}

// DeleteFirmware removes the record and its binary and returns the
// deleted record.
func (s *Store) DeleteFirmware(ctx context.Context, id string) (*Firmware, error) {
	f, err := s.Firmware(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(f).Error; err != nil {
		return nil, fmt.Errorf("failed to delete firmware record: %w", err)
	}
	if err := os.Remove(s.Path(f)); err != nil && !os.IsNotExist(err) {
		return f, fmt.Errorf("failed to remove firmware binary: %w", err)
	}
	return f, nil
}

// Devices returns every device in registration order.
func (s *Store) Devices(ctx context.Context) ([]Device, error) {
	var out []Device
	err := s.db.WithContext(ctx).Order("created_at, device_id").Find(&out).Error
	return out, err
}

// DeviceExists reports whether a device with deviceID is registered.
func (s *Store) DeviceExists(ctx context.Context, deviceID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Device{}).Where("device_id = ?", deviceID).Count(&count).Error
	return count > 0, err
}

// Projects returns every project ordered by name.
func (s *Store) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := s.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

// UserByEmail looks a user up case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Seed is the YAML document loaded with --seed.
//
//	users:
//	  - name: Admin
//	    email: admin@example.com
//	    password: change-me
//	    role: admin
//	projects:
//	  - id: p1
//	    name: Plant A
//	devices:
//	  - device_id: esp-01
//	    name: Boiler
//	    project: p1
//	    status: online
type Seed struct {
	Users    []SeedUser    `yaml:"users"`
	Projects []SeedProject `yaml:"projects"`
	Devices  []SeedDevice  `yaml:"devices"`
}

type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type SeedProject struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedDevice struct {
	DeviceID string `yaml:"device_id"`
	Name     string `yaml:"name"`
	Project  string `yaml:"project"`
	Status   string `yaml:"status"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed inserts the seed records. Existing users keep their password,
// existing projects and devices are updated in place.
func (s *Store) ApplySeed(ctx context.Context, seed *Seed) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, su := range seed.Users {
			if su.Email == "" {
				return fmt.Errorf("seed user %q has no email", su.Name)
			}
			var existing int64
			if err := tx.Model(&User{}).Where("LOWER(email) = ?", strings.ToLower(su.Email)).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}
			role := su.Role
			if role == "" {
				role = "user"
			}
			u := User{ID: uuid.NewString(), Name: su.Name, Email: su.Email, Role: role}
			if err := u.SetPassword(su.Password); err != nil {
				return fmt.Errorf("seed user %s: %w", su.Email, err)
			}
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
		}

		for _, sp := range seed.Projects {
			p := Project{ID: sp.ID, Name: sp.Name}
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}

		for _, sd := range seed.Devices {
			if sd.DeviceID == "" {
				return fmt.Errorf("seed device %q has no device_id", sd.Name)
			}
			var d Device
			err := tx.Where(Device{DeviceID: sd.DeviceID}).
				Attrs(Device{ID: uuid.NewString()}).
				Assign(Device{Name: sd.Name, ProjectID: sd.Project, Status: sd.Status}).
				FirstOrCreate(&d).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
