package application

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "ghnotify"

	// SettingsFile is the settings file name inside the application directory
	SettingsFile = "settings.yaml"

	// BoltFile is the bbolt database file name
	BoltFile = "ghnotify.bolt"

	// SQLiteFile is the SQLite database file name
	SQLiteFile = "ghnotify.db"

	// PIDFile records the running poller
	PIDFile = "ghnotify.pid"

	// KeyringService is the service name used for keyring entries
	KeyringService = "com.ghnotify.github.token"

	// KeyringAccount is the account name holding the GitHub access token
	KeyringAccount = "github_access_token"
)

var (
	once   sync.Once
	appDir string
	errDir error
)

// GetApplicationDirectory returns the ghnotify configuration directory path,
// creating it on first use.
// Linux: ~/.config/ghnotify (via os.UserConfigDir)
// Windows: C:\Users\{username}\AppData\Local\ghnotify (via os.UserCacheDir)
func GetApplicationDirectory() (string, error) {
	once.Do(lazyLoad)

	if errDir != nil {
		return "", errDir
	}

	return appDir, nil
}

// Path joins name onto the application directory.
func Path(name string) (string, error) {
	dir, err := GetApplicationDirectory()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, name), nil
}

func lazyLoad() {
	var (
		baseDir string
		err     error
	)

	switch runtime.GOOS {
	case "windows":
		// Windows: use AppData\Local (via UserCacheDir)
		baseDir, err = os.UserCacheDir()
	default:
		// Linux/others: use ~/.config (via UserConfigDir)
		baseDir, err = os.UserConfigDir()
	}

	if err != nil {
		errDir = fmt.Errorf("failed to get config directory: %w", err)
		return
	}

	appDir = filepath.Join(baseDir, AppName)

	if err := os.MkdirAll(appDir, 0o700); err != nil {
		errDir = fmt.Errorf("failed to create config directory: %w", err)
	}
}
