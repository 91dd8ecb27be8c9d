package protocol

import "strings"

const (
	SystemSender = "SYSTEM"
	NameAccepted = "NAME_ACCEPTED"
	NameExists   = "NAME_EXISTS"
	RosterPrefix = "Online players:"
)

func SystemChat(content string) Chat {
	return Chat{Name: SystemSender, Content: content}
}

func IsSystem(c Chat) bool { return c.Name == SystemSender }

func JoinedNotice(name string) string     { return name + " joined" }
func LeftNotice(name string) string       { return name + " left" }
func EliminatedNotice(name string) string { return name + " eliminated" }

// RosterContent formats the online set the way clients expect it: "Online players: a,b,".
func RosterContent(names []string) string {
	var sb strings.Builder
	sb.WriteString(RosterPrefix)
	sb.WriteByte(' ')
	for _, n := range names {
		sb.WriteString(n)
		sb.WriteByte(',')
	}
	return sb.String()
}

// ParseRoster extracts the names of a roster announcement. ok is false when
// content is not a roster at all.
func ParseRoster(content string) (names []string, ok bool) {
	rest, found := strings.CutPrefix(content, RosterPrefix)
	if !found {
		return nil, false
	}
	names = []string{}
	for _, part := range strings.Split(rest, ",") {
		if n := strings.TrimSpace(part); n != "" {
			names = append(names, n)
		}
	}
	return names, true
}
