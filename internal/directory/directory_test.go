package directory

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cafe-system/internal/domain"
)

const secret = "test-secret"

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := Open(t.TempDir(), secret, time.Hour, zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestSeedsAdminOnFirstBoot(t *testing.T) {
	d := newTestDirectory(t)

	users := d.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
	assert.Empty(t, users[0].Password, "list view must not leak credential hashes")
}

func TestLoginIssuesRoleClaim(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.Add("amira", "espresso", "cashier", "Amira")
	require.NoError(t, err)

	user, token, err := d.Login("amira", "espresso")
	require.NoError(t, err)
	assert.Equal(t, "cashier", user.Role)
	assert.Empty(t, user.Password)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte(secret), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "amira", claims["sub"])
	assert.Equal(t, "cashier", claims["role"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.Add("amira", "espresso", "cashier", "Amira")
	require.NoError(t, err)

	_, _, err = d.Login("amira", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = d.Login("nobody", "espresso")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAddRejectsDuplicateUsername(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.Add("amira", "espresso", "cashier", "Amira")
	require.NoError(t, err)

	_, err = d.Add("amira", "other", "waiter", "Someone Else")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdatePatchesProvidedFieldsOnly(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.Add("amira", "espresso", "cashier", "Amira")
	require.NoError(t, err)

	role := "waiter"
	u, err := d.Update("amira", nil, &role, nil)
	require.NoError(t, err)
	assert.Equal(t, "waiter", u.Role)
	assert.Equal(t, "Amira", u.Name)

	// old password still works since it was not part of the patch
	_, _, err = d.Login("amira", "espresso")
	require.NoError(t, err)
}

func TestDeleteProtectsAdmin(t *testing.T) {
	d := newTestDirectory(t)
	require.ErrorIs(t, d.Delete("admin"), domain.ErrValidation)

	_, err := d.Add("amira", "espresso", "cashier", "Amira")
	require.NoError(t, err)
	require.NoError(t, d.Delete("amira"))
	require.ErrorIs(t, d.Delete("amira"), domain.ErrNotFound)
}
