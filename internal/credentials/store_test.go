package credentials

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	dir   string
	store *FileStore
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	suite.dir = filepath.Join(suite.T().TempDir(), "credentials")

	store, err := NewFileStore(suite.dir)
	suite.Require().NoError(err)
	suite.store = store
}

func (suite *StoreTestSuite) TestSaveLoadDelete() {
	ctx := context.Background()

	suite.Require().NoError(suite.store.Save(ctx, "polygon-api-key", "s3cret"))

	loaded, err := suite.store.Load(ctx, "polygon-api-key")
	suite.Require().NoError(err)
	suite.True(loaded.IsSome())
	suite.Equal("s3cret", loaded.Unwrap())

	suite.Require().NoError(suite.store.Delete(ctx, "polygon-api-key"))

	loaded, err = suite.store.Load(ctx, "polygon-api-key")
	suite.Require().NoError(err)
	suite.True(loaded.IsNone())
}

func (suite *StoreTestSuite) TestLoadMissing() {
	loaded, err := suite.store.Load(context.Background(), "nothing")
	suite.NoError(err)
	suite.True(loaded.IsNone())
}

func (suite *StoreTestSuite) TestDeleteMissingIsNoop() {
	suite.NoError(suite.store.Delete(context.Background(), "nothing"))
}

func (suite *StoreTestSuite) TestSecretIsNotStoredInPlaintext() {
	suite.Require().NoError(suite.store.Save(context.Background(), "ib/password", "hunter2"))

	raw, err := os.ReadFile(filepath.Join(suite.dir, "ib_password.bin"))
	suite.Require().NoError(err)
	suite.NotContains(string(raw), "hunter2")
}

func (suite *StoreTestSuite) TestKeyFilePermissions() {
	if runtime.GOOS == "windows" {
		suite.T().Skip("permission bits are not enforced on windows")
	}

	suite.Require().NoError(suite.store.Save(context.Background(), "k", "v"))

	info, err := os.Stat(filepath.Join(suite.dir, "secret.key"))
	suite.Require().NoError(err)
	suite.Equal(os.FileMode(0600), info.Mode().Perm())
}

func (suite *StoreTestSuite) TestSecretsSurviveNewStoreInstance() {
	suite.Require().NoError(suite.store.Save(context.Background(), "k", "value"))

	reopened, err := NewFileStore(suite.dir)
	suite.Require().NoError(err)

	loaded, err := reopened.Load(context.Background(), "k")
	suite.Require().NoError(err)
	suite.Equal("value", loaded.Unwrap())
}

func (suite *StoreTestSuite) TestTamperedSecretFails() {
	suite.Require().NoError(suite.store.Save(context.Background(), "k", "value"))

	path := filepath.Join(suite.dir, "k.bin")
	raw, err := os.ReadFile(path)
	suite.Require().NoError(err)
	raw[len(raw)-1] ^= 0xff
	suite.Require().NoError(os.WriteFile(path, raw, 0600))

	_, err = suite.store.Load(context.Background(), "k")
	suite.True(errors.HasCode(err, errors.ErrCodeCredentialStore))
}

func (suite *StoreTestSuite) TestBlankKeyRejected() {
	suite.True(errors.HasCode(suite.store.Save(context.Background(), " ", "v"), errors.ErrCodeMissingParameter))

	_, err := suite.store.Load(context.Background(), "///")
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *StoreTestSuite) TestSanitizeKey() {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "simple", expected: "simple"},
		{input: "ib/password", expected: "ib_password"},
		{input: "a::b", expected: "a_b"},
		{input: "/leading", expected: "leading"},
		{input: "with space", expected: "with space"},
	}

	for _, tc := range tests {
		suite.Run(tc.input, func() {
			suite.Equal(tc.expected, SanitizeKey(tc.input))
		})
	}
}
