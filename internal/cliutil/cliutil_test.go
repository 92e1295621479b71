package cliutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/twinbase/twinbase-dlt/pkg/config"
)

func runApp(t *testing.T, args []string, action func(c *cli.Context) error) {
	flags := CommonFlags(time.Minute)
	flags = append(flags, SignerFlags()...)
	flags = append(flags, ArchiveFlags()...)
	app := &cli.App{Name: "test", Flags: flags, Action: action}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
}

func TestParseSignerConfig(t *testing.T) {
	t.Run("private key from env", func(t *testing.T) {
		t.Setenv(config.EnvDLTPrivateKey, "0xabc")
		runApp(t, nil, func(c *cli.Context) error {
			sc := ParseSignerConfig(c)
			assert.Equal(t, config.SignerTypePrivateKey, sc.Type)
			assert.Equal(t, "0xabc", sc.PrivateKey)
			assert.Nil(t, sc.RemoteSigner)
			assert.Nil(t, sc.AWSKMS)
			assert.Equal(t, time.Minute, c.Duration("timeout"))
			assert.Equal(t, config.DefaultContractInfoFile, c.String("contract-info"))
			return nil
		})
	})

	t.Run("web3signer", func(t *testing.T) {
		runApp(t, []string{
			"--signer-type", "web3signer",
			"--web3signer-url", "https://signer:9000",
			"--signer-address", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		}, func(c *cli.Context) error {
			sc := ParseSignerConfig(c)
			require.NotNil(t, sc.RemoteSigner)
			assert.Equal(t, "https://signer:9000", sc.RemoteSigner.Url)
			assert.NoError(t, sc.Validate())
			return nil
		})
	})

	t.Run("aws kms", func(t *testing.T) {
		t.Setenv(config.EnvAWSKMSKeyId, "alias/twinbase")
		runApp(t, []string{"--signer-type", "aws-kms", "--aws-region", "eu-north-1"}, func(c *cli.Context) error {
			sc := ParseSignerConfig(c)
			require.NotNil(t, sc.AWSKMS)
			assert.Equal(t, "alias/twinbase", sc.AWSKMS.KeyId)
			assert.Equal(t, "eu-north-1", sc.AWSKMS.Region)
			return nil
		})
	})
}

func TestParseArchiveConfig(t *testing.T) {
	runApp(t, []string{"--archive-type", "redis", "--redis-address", "localhost:6379", "--redis-db", "3"}, func(c *cli.Context) error {
		ac := ParseArchiveConfig(c)
		assert.Equal(t, config.ArchiveTypeRedis, ac.Type)
		assert.Equal(t, "localhost:6379", ac.RedisAddress)
		assert.Equal(t, 3, ac.RedisDB)
		assert.NoError(t, ac.Validate())
		return nil
	})

	runApp(t, nil, func(c *cli.Context) error {
		ac := ParseArchiveConfig(c)
		assert.Equal(t, config.ArchiveTypeNone, ac.Type)
		return nil
	})
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// Missing .env is not an error
	require.NoError(t, LoadEnvFile())

	const key = "TWINBASE_CLIUTIL_TEST"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	require.NoError(t, LoadEnvFile())
	assert.Equal(t, "from-dotenv", os.Getenv(key))
}
