// Package hash wraps bcrypt for the dictionary auth provider's password storage.
package hash

import (
	"github.com/edgebroker/goqttd/internal/xerror"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used by the dictionary provider when no cost is configured.
const DefaultCost = bcrypt.DefaultCost

func HashPasswd(passwd string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passwd), cost)
	if err != nil {
		return "", &xerror.Err{
			Context: "hash",
			Message: xerror.ErrHashFailed,
		}
	}
	return string(hash), nil
}

func VerifyPasswd(hash, passwd string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passwd)) == nil
}
