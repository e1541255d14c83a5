package monitoring

// Queue is a broker queue, keyed by name.
type Queue struct {
	Name                   string
	Messages               int
	MessagesReady          int
	MessagesUnacknowledged int
	Consumers              int
}

// Validate checks that the queue can be keyed.
func (q Queue) Validate() error {
	if q.Name == "" {
		return ErrMissingIdentity
	}
	return nil
}
