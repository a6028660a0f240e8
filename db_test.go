package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract; every adapter must pass it.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	base := time.Now().UTC().Truncate(time.Second)

	brandFixture := func(email, username string) *Brand {
		return &Brand{
			Name:          "Acme",
			Email:         email,
			Password:      "hash",
			AdminUsername: username,
			Category:      "fashion",
			Country:       "UK",
			Website:       "https://acme.test",
			Status:        StatusPendingOTP,
			SubmittedAt:   base,
		}
	}

	t.Run("user create and fetch", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreateUser(&User{Name: "Sam", Email: "Sam@Uni.ac.uk", Password: "hash", CreatedAt: base})
		require.NoError(t, err)
		assert.Equal(t, "sam@uni.ac.uk", created.Email)
		require.NotZero(t, created.ID)

		got, err := s.GetUserByEmail("SAM@uni.ac.uk")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.False(t, got.Verified)

		missing, err := s.GetUserByEmail("nobody@uni.ac.uk")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("user email unique case-insensitively", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateUser(&User{Name: "Sam", Email: "sam@uni.ac.uk", Password: "hash", CreatedAt: base})
		require.NoError(t, err)
		_, err = s.CreateUser(&User{Name: "Sam2", Email: "SAM@UNI.AC.UK", Password: "hash", CreatedAt: base})
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
	})

	t.Run("mark verified and update password", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateUser(&User{Name: "Sam", Email: "sam@uni.ac.uk", Password: "hash", CreatedAt: base})
		require.NoError(t, err)

		require.NoError(t, s.MarkUserVerified("sam@uni.ac.uk"))
		got, err := s.GetUserByEmail("sam@uni.ac.uk")
		require.NoError(t, err)
		assert.True(t, got.Verified)

		require.NoError(t, s.UpdateUserPassword("sam@uni.ac.uk", "newhash"))
		got, err = s.GetUserByEmail("sam@uni.ac.uk")
		require.NoError(t, err)
		assert.Equal(t, "newhash", got.Password)

		assert.ErrorIs(t, s.MarkUserVerified("nobody@uni.ac.uk"), ErrNotFound)
		assert.ErrorIs(t, s.UpdateUserPassword("nobody@uni.ac.uk", "x"), ErrNotFound)
	})

	t.Run("brand uniqueness covers email and admin username", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateBrand(brandFixture("a@b.com", "acmeadmin"))
		require.NoError(t, err)

		_, err = s.CreateBrand(brandFixture("A@B.COM", "other"))
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
		_, err = s.CreateBrand(brandFixture("other@b.com", "ACMEADMIN"))
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
	})

	t.Run("brand status CAS", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreateBrand(brandFixture("a@b.com", "acmeadmin"))
		require.NoError(t, err)

		moved, err := s.AdvanceBrandStatusByEmail("a@b.com", StatusPendingOTP, StatusPendingReview)
		require.NoError(t, err)
		assert.True(t, moved)

		// CAS miss by email is a report, not an error
		moved, err = s.AdvanceBrandStatusByEmail("a@b.com", StatusPendingOTP, StatusPendingReview)
		require.NoError(t, err)
		assert.False(t, moved)

		decided := base.Add(time.Hour)
		require.NoError(t, s.AdvanceBrandStatus(created.ID, StatusPendingReview, StatusApproved, "fine", &decided))

		got, err := s.GetBrandByID(created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, got.Status)
		assert.Equal(t, "fine", got.ReviewNote)
		require.NotNil(t, got.DecidedAt)

		// CAS miss by id is the transition error
		err = s.AdvanceBrandStatus(created.ID, StatusPendingReview, StatusRejected, "", &decided)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		err = s.AdvanceBrandStatus(99999, StatusPendingReview, StatusApproved, "", &decided)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by status ordered oldest first", func(t *testing.T) {
		s := newStore(t)
		for i, email := range []string{"c1@b.com", "c2@b.com", "c3@b.com"} {
			b := brandFixture(email, email)
			b.Status = StatusPendingReview
			b.SubmittedAt = base.Add(time.Duration(i) * time.Minute)
			_, err := s.CreateBrand(b)
			require.NoError(t, err)
		}
		other := brandFixture("x@b.com", "x")
		_, err := s.CreateBrand(other)
		require.NoError(t, err)

		got, err := s.ListBrandsByStatus(StatusPendingReview)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "c1@b.com", got[0].Email)
		assert.Equal(t, "c2@b.com", got[1].Email)
		assert.Equal(t, "c3@b.com", got[2].Email)
	})

	t.Run("replace otp consumes priors of same purpose only", func(t *testing.T) {
		s := newStore(t)
		first, err := s.ReplaceOTP(&OTPRecord{Email: "x@y.com", Purpose: PurposeRegistration, Code: "111111", IssuedAt: base, ExpiresAt: base.Add(5 * time.Minute)})
		require.NoError(t, err)
		reset, err := s.ReplaceOTP(&OTPRecord{Email: "x@y.com", Purpose: PurposePasswordReset, Code: "333333", IssuedAt: base, ExpiresAt: base.Add(5 * time.Minute)})
		require.NoError(t, err)
		second, err := s.ReplaceOTP(&OTPRecord{Email: "x@y.com", Purpose: PurposeRegistration, Code: "222222", IssuedAt: base.Add(time.Minute), ExpiresAt: base.Add(6 * time.Minute)})
		require.NoError(t, err)

		active, err := s.GetActiveOTP("x@y.com", PurposeRegistration)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, second.ID, active.ID)
		assert.Equal(t, "222222", active.Code)

		// the replaced record is spent
		won, err := s.ConsumeOTP(first.ID)
		require.NoError(t, err)
		assert.False(t, won)

		// the other purpose's record is untouched
		activeReset, err := s.GetActiveOTP("x@y.com", PurposePasswordReset)
		require.NoError(t, err)
		require.NotNil(t, activeReset)
		assert.Equal(t, reset.ID, activeReset.ID)
	})

	t.Run("consume otp wins once", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.ReplaceOTP(&OTPRecord{Email: "x@y.com", Purpose: PurposeRegistration, Code: "111111", IssuedAt: base, ExpiresAt: base.Add(5 * time.Minute)})
		require.NoError(t, err)

		won, err := s.ConsumeOTP(rec.ID)
		require.NoError(t, err)
		assert.True(t, won)
		won, err = s.ConsumeOTP(rec.ID)
		require.NoError(t, err)
		assert.False(t, won)

		active, err := s.GetActiveOTP("x@y.com", PurposeRegistration)
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("no active otp", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.GetActiveOTP("fresh@y.com", PurposeRegistration)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestMemStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "thrift.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.close() })
		return s
	})
}
