package credentialsmock_test

import (
	"testing"

	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/credentials/credentialsmock"
	"github.com/openkcm/oauth-server/internal/credentials/credentialstest"
)

func TestRepository(t *testing.T) {
	credentialstest.RunRepositoryTests(t, func(*testing.T) credentials.Repository {
		return credentialsmock.NewInMemRepository()
	})
}
