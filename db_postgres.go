package main

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
)

type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStore{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) Init() error {
	// Tables come from migrations; just verify connectivity.
	return p.db.Ping()
}

func isPqUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (p *PostgresStore) CreateUser(u *User) (*User, error) {
	email := strings.ToLower(u.Email)
	var id int64
	err := p.db.QueryRow(`INSERT INTO users(name,email,password,verified,created_at) VALUES($1,$2,$3,false,$4) RETURNING id`,
		u.Name, email, u.Password, u.CreatedAt).Scan(&id)
	if err != nil {
		if isPqUnique(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	out := *u
	out.ID = id
	out.Email = email
	return &out, nil
}

func (p *PostgresStore) GetUserByEmail(email string) (*User, error) {
	row := p.db.QueryRow(`SELECT id,name,email,password,verified,created_at FROM users WHERE lower(email) = lower($1)`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Verified, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStore) MarkUserVerified(email string) error {
	res, err := p.db.Exec(`UPDATE users SET verified = true WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateUserPassword(email, passwordHash string) error {
	res, err := p.db.Exec(`UPDATE users SET password = $1 WHERE lower(email) = lower($2)`, passwordHash, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CreateBrand(b *Brand) (*Brand, error) {
	email := strings.ToLower(b.Email)
	var id int64
	err := p.db.QueryRow(`INSERT INTO brands(name,email,password,admin_username,category,country,website,description,phone_number,logo,status,submitted_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		b.Name, email, b.Password, b.AdminUsername, b.Category, b.Country, b.Website, b.Description, b.PhoneNumber, b.Logo, string(b.Status), b.SubmittedAt).Scan(&id)
	if err != nil {
		if isPqUnique(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	out := *b
	out.ID = id
	out.Email = email
	return &out, nil
}

func (p *PostgresStore) GetBrandByEmail(email string) (*Brand, error) {
	row := p.db.QueryRow(`SELECT `+brandColumns+` FROM brands WHERE lower(email) = lower($1)`, email)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (p *PostgresStore) GetBrandByID(id int64) (*Brand, error) {
	row := p.db.QueryRow(`SELECT `+brandColumns+` FROM brands WHERE id = $1`, id)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (p *PostgresStore) AdvanceBrandStatus(id int64, from, to ApprovalStatus, note string, decidedAt *time.Time) error {
	res, err := p.db.Exec(`UPDATE brands SET status = $1, review_note = $2, decided_at = $3 WHERE id = $4 AND status = $5`,
		string(to), note, decidedAt, id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		b, err := p.GetBrandByID(id)
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

func (p *PostgresStore) AdvanceBrandStatusByEmail(email string, from, to ApprovalStatus) (bool, error) {
	res, err := p.db.Exec(`UPDATE brands SET status = $1 WHERE lower(email) = lower($2) AND status = $3`,
		string(to), email, string(from))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *PostgresStore) ListBrandsByStatus(status ApprovalStatus) ([]*Brand, error) {
	rows, err := p.db.Query(`SELECT `+brandColumns+` FROM brands WHERE status = $1 ORDER BY submitted_at ASC, id ASC`, string(status))
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

func (p *PostgresStore) UpdateBrandPassword(email, passwordHash string) error {
	res, err := p.db.Exec(`UPDATE brands SET password = $1 WHERE lower(email) = lower($2)`, passwordHash, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ReplaceOTP(rec *OTPRecord) (*OTPRecord, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	email := strings.ToLower(rec.Email)
	if _, err := tx.Exec(`UPDATE otp_codes SET consumed = true WHERE email = $1 AND purpose = $2 AND consumed = false`,
		email, string(rec.Purpose)); err != nil {
		return nil, err
	}
	var id int64
	err = tx.QueryRow(`INSERT INTO otp_codes(email,purpose,code,issued_at,expires_at,consumed,resend_count) VALUES($1,$2,$3,$4,$5,false,$6) RETURNING id`,
		email, string(rec.Purpose), rec.Code, rec.IssuedAt, rec.ExpiresAt, rec.ResendCount).Scan(&id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out := *rec
	out.ID = id
	out.Email = email
	return &out, nil
}

func (p *PostgresStore) GetActiveOTP(email string, purpose OTPPurpose) (*OTPRecord, error) {
	row := p.db.QueryRow(`SELECT id,email,purpose,code,issued_at,expires_at,consumed,resend_count FROM otp_codes
		WHERE email = lower($1) AND purpose = $2 AND consumed = false ORDER BY issued_at DESC, id DESC LIMIT 1`,
		email, string(purpose))
	var o OTPRecord
	var purposeStr string
	if err := row.Scan(&o.ID, &o.Email, &purposeStr, &o.Code, &o.IssuedAt, &o.ExpiresAt, &o.Consumed, &o.ResendCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	o.Purpose = OTPPurpose(purposeStr)
	return &o, nil
}

func (p *PostgresStore) ConsumeOTP(id int64) (bool, error) {
	res, err := p.db.Exec(`UPDATE otp_codes SET consumed = true WHERE id = $1 AND consumed = false`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *PostgresStore) close() error { return p.db.Close() }
func (p *PostgresStore) ping() bool   { return p.db.Ping() == nil }
