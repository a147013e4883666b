package prompt

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
)

// SystemInfoRetriever describes the OS, the user's shell and the working directory.
type SystemInfoRetriever struct {
	shell string
	dir   string
}

func NewSystemInfoRetriever(shell string, dir string) *SystemInfoRetriever {
	return &SystemInfoRetriever{shell: shell, dir: dir}
}

func (r *SystemInfoRetriever) Name() string {
	return "system_info"
}

func (r *SystemInfoRetriever) GetContext() (string, error) {
	return fmt.Sprintf("\nEnvironment:\nOS=%s (%s), Shell=%s, CWD=%s\n",
		runtime.GOOS, runtime.GOARCH, r.shell, r.dir), nil
}

// UserRetriever names the current user and their home directory.
type UserRetriever struct {
	username string
	home     string
}

func NewUserRetriever(username string, home string) *UserRetriever {
	return &UserRetriever{username: username, home: home}
}

func (r *UserRetriever) Name() string {
	return "user"
}

func (r *UserRetriever) GetContext() (string, error) {
	return fmt.Sprintf("User: %s (home=%s)\n", r.username, r.home), nil
}

// CurrentUsername falls back to $USER, then "unknown".
func CurrentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
