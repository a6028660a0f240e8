package main

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists identities and OTP codes. Adapters must enforce
// case-insensitive uniqueness on emails and brand admin usernames, and
// implement the guarded updates (AdvanceBrandStatus, ConsumeOTP, ReplaceOTP)
// atomically so concurrent requests cannot double-process a record.
type Store interface {
	Init() error

	// User operations
	CreateUser(u *User) (*User, error)
	GetUserByEmail(email string) (*User, error)
	MarkUserVerified(email string) error
	UpdateUserPassword(email, passwordHash string) error

	// Brand operations
	CreateBrand(b *Brand) (*Brand, error)
	GetBrandByEmail(email string) (*Brand, error)
	GetBrandByID(id int64) (*Brand, error)
	// AdvanceBrandStatus is a compare-and-set: the row moves from `from` to
	// `to` only if it is still in `from`, otherwise ErrInvalidTransition.
	AdvanceBrandStatus(id int64, from, to ApprovalStatus, note string, decidedAt *time.Time) error
	// AdvanceBrandStatusByEmail reports whether the row moved; a CAS miss is
	// not an error here because OTP re-verification is idempotent.
	AdvanceBrandStatusByEmail(email string, from, to ApprovalStatus) (bool, error)
	ListBrandsByStatus(status ApprovalStatus) ([]*Brand, error)
	UpdateBrandPassword(email, passwordHash string) error

	// OTP operations
	// ReplaceOTP consumes any prior active record for (email, purpose) and
	// inserts the new one as a single atomic unit.
	ReplaceOTP(rec *OTPRecord) (*OTPRecord, error)
	// GetActiveOTP returns the newest unconsumed record, expired or not;
	// expiry is the engine's concern. nil, nil when none exists.
	GetActiveOTP(email string, purpose OTPPurpose) (*OTPRecord, error)
	// ConsumeOTP flips the consumed flag and reports whether this call won;
	// a record consumes exactly once.
	ConsumeOTP(id int64) (bool, error)
}

// Memory store, used by tests and local development.
type MemStore struct {
	mu     sync.Mutex
	users  map[string]*User // keyed by lowercased email
	brands map[int64]*Brand
	otps   []*OTPRecord
	seq    int64
}

func NewMemStore() *MemStore {
	return &MemStore{users: map[string]*User{}, brands: map[int64]*Brand{}}
}

func (m *MemStore) Init() error { return nil }

func (m *MemStore) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *MemStore) CreateUser(u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := m.users[key]; ok {
		return nil, ErrDuplicateIdentity
	}
	cp := *u
	cp.ID = m.nextID()
	cp.Email = key
	m.users[key] = &cp
	out := cp
	return &out, nil
}

func (m *MemStore) GetUserByEmail(email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[strings.ToLower(email)]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemStore) MarkUserVerified(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return ErrNotFound
	}
	u.Verified = true
	return nil
}

func (m *MemStore) UpdateUserPassword(email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return ErrNotFound
	}
	u.Password = passwordHash
	return nil
}

func (m *MemStore) CreateBrand(b *Brand) (*Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.brands {
		if strings.EqualFold(existing.Email, b.Email) || strings.EqualFold(existing.AdminUsername, b.AdminUsername) {
			return nil, ErrDuplicateIdentity
		}
	}
	cp := *b
	cp.ID = m.nextID()
	cp.Email = strings.ToLower(b.Email)
	m.brands[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemStore) GetBrandByEmail(email string) (*Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.brands {
		if strings.EqualFold(b.Email, email) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) GetBrandByID(id int64) (*Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.brands[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (m *MemStore) AdvanceBrandStatus(id int64, from, to ApprovalStatus, note string, decidedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brands[id]
	if !ok {
		return ErrNotFound
	}
	if b.Status != from {
		return ErrInvalidTransition
	}
	b.Status = to
	b.ReviewNote = note
	b.DecidedAt = decidedAt
	return nil
}

func (m *MemStore) AdvanceBrandStatusByEmail(email string, from, to ApprovalStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.brands {
		if strings.EqualFold(b.Email, email) {
			if b.Status != from {
				return false, nil
			}
			b.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) ListBrandsByStatus(status ApprovalStatus) ([]*Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Brand
	for _, b := range m.brands {
		if b.Status == status {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (m *MemStore) UpdateBrandPassword(email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.brands {
		if strings.EqualFold(b.Email, email) {
			b.Password = passwordHash
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) ReplaceOTP(rec *OTPRecord) (*OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(rec.Email)
	for _, o := range m.otps {
		if o.Email == key && o.Purpose == rec.Purpose {
			o.Consumed = true
		}
	}
	cp := *rec
	cp.ID = m.nextID()
	cp.Email = key
	m.otps = append(m.otps, &cp)
	out := cp
	return &out, nil
}

func (m *MemStore) GetActiveOTP(email string, purpose OTPPurpose) (*OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(email)
	var latest *OTPRecord
	for _, o := range m.otps {
		if o.Email == key && o.Purpose == purpose && !o.Consumed {
			if latest == nil || o.IssuedAt.After(latest.IssuedAt) {
				latest = o
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *MemStore) ConsumeOTP(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		if o.ID == id {
			if o.Consumed {
				return false, nil
			}
			o.Consumed = true
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) close() error { return nil }
func (m *MemStore) ping() bool   { return true }

// SQLite store
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			password TEXT NOT NULL,
			verified INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users(lower(email));`,
		`CREATE TABLE IF NOT EXISTS brands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			password TEXT NOT NULL,
			admin_username TEXT NOT NULL,
			category TEXT NOT NULL,
			country TEXT NOT NULL,
			website TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			phone_number TEXT NOT NULL DEFAULT '',
			logo TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			review_note TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMP NOT NULL,
			decided_at TIMESTAMP
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS brands_email_idx ON brands(lower(email));`,
		`CREATE UNIQUE INDEX IF NOT EXISTS brands_admin_username_idx ON brands(lower(admin_username));`,
		`CREATE TABLE IF NOT EXISTS otp_codes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			purpose TEXT NOT NULL,
			code TEXT NOT NULL,
			issued_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			consumed INTEGER NOT NULL DEFAULT 0,
			resend_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS otp_codes_lookup_idx ON otp_codes(email, purpose, consumed);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateUser(u *User) (*User, error) {
	email := strings.ToLower(u.Email)
	res, err := s.db.Exec(`INSERT INTO users(name,email,password,verified,created_at) VALUES(?,?,?,0,?)`,
		u.Name, email, u.Password, u.CreatedAt)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	id, _ := res.LastInsertId()
	out := *u
	out.ID = id
	out.Email = email
	return &out, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	row := s.db.QueryRow(`SELECT id,name,email,password,verified,created_at FROM users WHERE lower(email) = lower(?)`, email)
	var u User
	var verified int
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &verified, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Verified = verified != 0
	return &u, nil
}

func (s *SQLiteStore) MarkUserVerified(email string) error {
	res, err := s.db.Exec(`UPDATE users SET verified = 1 WHERE lower(email) = lower(?)`, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpdateUserPassword(email, passwordHash string) error {
	res, err := s.db.Exec(`UPDATE users SET password = ? WHERE lower(email) = lower(?)`, passwordHash, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateBrand(b *Brand) (*Brand, error) {
	email := strings.ToLower(b.Email)
	res, err := s.db.Exec(`INSERT INTO brands(name,email,password,admin_username,category,country,website,description,phone_number,logo,status,submitted_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.Name, email, b.Password, b.AdminUsername, b.Category, b.Country, b.Website, b.Description, b.PhoneNumber, b.Logo, string(b.Status), b.SubmittedAt)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	id, _ := res.LastInsertId()
	out := *b
	out.ID = id
	out.Email = email
	return &out, nil
}

const brandColumns = `id,name,email,password,admin_username,category,country,website,description,phone_number,logo,status,review_note,submitted_at,decided_at`

func scanBrand(row interface{ Scan(...interface{}) error }) (*Brand, error) {
	var b Brand
	var status string
	var decidedAt sql.NullTime
	if err := row.Scan(&b.ID, &b.Name, &b.Email, &b.Password, &b.AdminUsername, &b.Category, &b.Country,
		&b.Website, &b.Description, &b.PhoneNumber, &b.Logo, &status, &b.ReviewNote, &b.SubmittedAt, &decidedAt); err != nil {
		return nil, err
	}
	b.Status = ApprovalStatus(status)
	if decidedAt.Valid {
		b.DecidedAt = &decidedAt.Time
	}
	return &b, nil
}

func (s *SQLiteStore) GetBrandByEmail(email string) (*Brand, error) {
	row := s.db.QueryRow(`SELECT `+brandColumns+` FROM brands WHERE lower(email) = lower(?)`, email)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (s *SQLiteStore) GetBrandByID(id int64) (*Brand, error) {
	row := s.db.QueryRow(`SELECT `+brandColumns+` FROM brands WHERE id = ?`, id)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (s *SQLiteStore) AdvanceBrandStatus(id int64, from, to ApprovalStatus, note string, decidedAt *time.Time) error {
	res, err := s.db.Exec(`UPDATE brands SET status = ?, review_note = ?, decided_at = ? WHERE id = ? AND status = ?`,
		string(to), note, decidedAt, id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing row from a CAS miss.
		b, err := s.GetBrandByID(id)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

func (s *SQLiteStore) AdvanceBrandStatusByEmail(email string, from, to ApprovalStatus) (bool, error) {
	res, err := s.db.Exec(`UPDATE brands SET status = ? WHERE lower(email) = lower(?) AND status = ?`,
		string(to), email, string(from))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) ListBrandsByStatus(status ApprovalStatus) ([]*Brand, error) {
	rows, err := s.db.Query(`SELECT `+brandColumns+` FROM brands WHERE status = ? ORDER BY submitted_at ASC, id ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateBrandPassword(email, passwordHash string) error {
	res, err := s.db.Exec(`UPDATE brands SET password = ? WHERE lower(email) = lower(?)`, passwordHash, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ReplaceOTP(rec *OTPRecord) (*OTPRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	email := strings.ToLower(rec.Email)
	if _, err := tx.Exec(`UPDATE otp_codes SET consumed = 1 WHERE email = ? AND purpose = ? AND consumed = 0`,
		email, string(rec.Purpose)); err != nil {
		return nil, err
	}
	res, err := tx.Exec(`INSERT INTO otp_codes(email,purpose,code,issued_at,expires_at,consumed,resend_count) VALUES(?,?,?,?,?,0,?)`,
		email, string(rec.Purpose), rec.Code, rec.IssuedAt, rec.ExpiresAt, rec.ResendCount)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	out := *rec
	out.ID = id
	out.Email = email
	return &out, nil
}

func (s *SQLiteStore) GetActiveOTP(email string, purpose OTPPurpose) (*OTPRecord, error) {
	row := s.db.QueryRow(`SELECT id,email,purpose,code,issued_at,expires_at,consumed,resend_count FROM otp_codes
		WHERE email = lower(?) AND purpose = ? AND consumed = 0 ORDER BY issued_at DESC, id DESC LIMIT 1`,
		email, string(purpose))
	var o OTPRecord
	var purposeStr string
	var consumed int
	if err := row.Scan(&o.ID, &o.Email, &purposeStr, &o.Code, &o.IssuedAt, &o.ExpiresAt, &consumed, &o.ResendCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	o.Purpose = OTPPurpose(purposeStr)
	o.Consumed = consumed != 0
	return &o, nil
}

func (s *SQLiteStore) ConsumeOTP(id int64) (bool, error) {
	res, err := s.db.Exec(`UPDATE otp_codes SET consumed = 1 WHERE id = ? AND consumed = 0`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) close() error { return s.db.Close() }
func (s *SQLiteStore) ping() bool   { return s.db.Ping() == nil }
