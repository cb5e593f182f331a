package domain

// Principal is the authenticated caller. Staff may manage every link.
type Principal struct {
	ID    string `json:"id"`
	Staff bool   `json:"staff"`
}

// CanManage reports whether p may read, change or delete link.
func (p Principal) CanManage(link *Link) bool {
	if link == nil {
		return false
	}
	return p.Staff || (p.ID != "" && p.ID == link.Owner)
}
