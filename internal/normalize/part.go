package normalize

// Header is one raw message header. Provider header lists are unordered and
// may repeat names.
type Header struct {
	Name  string
	Value string
}

// PartInfo is the metadata every payload part carries.
type PartInfo struct {
	MediaType string
	Filename  string
	Size      int64
}

// Part is a node of the message payload tree: either a *Leaf holding inline
// encoded body data or a *Container holding sub-parts.
type Part interface {
	Info() PartInfo
	isPart()
}

// Leaf is a payload part with inline body data, base64url encoded as the
// provider sends it.
type Leaf struct {
	PartInfo
	Data string
}

// Container is a payload part whose content is a list of nested parts.
type Container struct {
	PartInfo
	Parts []Part
}

func (l *Leaf) Info() PartInfo      { return l.PartInfo }
func (c *Container) Info() PartInfo { return c.PartInfo }

func (*Leaf) isPart()      {}
func (*Container) isPart() {}

// RawMessage is a provider message as returned by the remote mailbox.
type RawMessage struct {
	ID           string
	ThreadID     string
	Snippet      string
	LabelIDs     []string
	InternalDate int64 // epoch milliseconds
	Headers      []Header
	Payload      Part
}
