package smb

import (
	"fmt"
	"strings"
)

// UNCPath is \\server\share\path, adapted from
// original_source/smb/src/client/unc_path.rs (see DESIGN.md §10): accepts
// both backslash and forward-slash separators and keeps share/path optional
// so it doubles as a bare-server address.
type UNCPath struct {
	Server string
	Share  string // empty if unset
	Path   string // empty if unset
}

// IPCShare builds the well-known IPC$ administrative share UNC path, used by
// the CLI the way the teacher's main.go does (session.TreeConnect("IPC$")).
func IPCShare(server string) UNCPath {
	return UNCPath{Server: server, Share: "IPC$"}
}

// ParseUNCPath parses a UNC path string. It requires a leading "\\" or "//".
func ParseUNCPath(input string) (UNCPath, error) {
	if !strings.HasPrefix(input, `\\`) && !strings.HasPrefix(input, "//") {
		return UNCPath{}, fmt.Errorf("%w: UNC path must start with two slashes", ErrInvalidConfiguration)
	}
	rest := input[2:]
	parts := strings.FieldsFunc(rest, func(r rune) bool { return r == '\\' || r == '/' })
	if len(parts) == 0 || parts[0] == "" {
		return UNCPath{}, fmt.Errorf("%w: UNC path must include a server name", ErrInvalidConfiguration)
	}
	u := UNCPath{Server: parts[0]}
	if len(parts) > 1 {
		u.Share = parts[1]
	}
	if len(parts) > 2 {
		u.Path = parts[2]
	}
	return u, nil
}

func (u UNCPath) String() string {
	s := `\\` + u.Server
	if u.Share != "" {
		s += `\` + u.Share
	}
	if u.Path != "" {
		s += `\` + u.Path
	}
	return s
}
