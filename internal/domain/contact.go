package domain

// Contact is a read-through view over the library's own contact store.
// The bridge does not persist contacts itself.
type Contact struct {
	JID          JID
	Name         string
	PushName     string
	BusinessName string
	PhoneNumber  string
}

// DisplayName picks the most specific available name.
func (c *Contact) DisplayName() string {
	if c == nil {
		return ""
	}
	switch {
	case c.Name != "":
		return c.Name
	case c.PushName != "":
		return c.PushName
	case c.BusinessName != "":
		return c.BusinessName
	}
	return c.PhoneNumber
}
