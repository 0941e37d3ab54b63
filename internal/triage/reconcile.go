package triage

// FolderMessage is a message currently held in a review folder
type FolderMessage struct {
	MessageID string
	// Ref is the transport reference within the folder
	Ref string
}

// Closure is a folder message to move to Closed with its store id
type Closure struct {
	FolderMessage
	StoreID int64
}

// SelectAnswered returns the folder messages whose thread received a later
// owner-authored message. answered maps message identifiers to store ids.
func SelectAnswered(answered map[string]int64, folder []FolderMessage) []Closure {
	var out []Closure
	for _, m := range folder {
		if id, ok := answered[m.MessageID]; ok && m.MessageID != "" {
			out = append(out, Closure{FolderMessage: m, StoreID: id})
		}
	}
	return out
}
