package token

// Pair is the credential pair held by a session. Both values are always
// replaced together.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Empty reports whether the pair holds no access credential.
func (p Pair) Empty() bool {
	return p.Access == ""
}

// Rotate returns the pair that results from a refresh exchange. The refresh
// credential is reused unless the backend handed back a new one.
func (p Pair) Rotate(access, refresh string) Pair {
	next := Pair{Access: access, Refresh: p.Refresh}
	if refresh != "" {
		next.Refresh = refresh
	}
	return next
}
