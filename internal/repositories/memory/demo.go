package memory

import (
	"sync"

	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/utils"
)

// Demo identity available whenever the volatile store is in use.
const (
	DemoUsername = "test_user"
	DemoEmail    = "test@example.com"
	DemoPassword = "password123"
)

var (
	demoHashOnce sync.Once
	demoHash     string
)

// DemoPasswordHash returns the bcrypt hash of DemoPassword, computed once per process.
func DemoPasswordHash() string {
	demoHashOnce.Do(func() {
		h, err := utils.HashPassword(DemoPassword)
		if err != nil {
			panic("memory: hashing demo password: " + err.Error())
		}
		demoHash = h
	})
	return demoHash
}

func demoUser() models.User {
	return models.User{
		Username: DemoUsername,
		Email:    DemoEmail,
		Password: DemoPasswordHash(),
	}
}
