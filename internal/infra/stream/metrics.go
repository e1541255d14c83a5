package stream

type noopMetrics struct{}

func (noopMetrics) IncConnectAttempts()              {}
func (noopMetrics) IncConnects()                     {}
func (noopMetrics) IncDisconnects(string)            {}
func (noopMetrics) SetState(string)                  {}
func (noopMetrics) IncFramesReceived(string)         {}
func (noopMetrics) IncFrameErrors(string)            {}
func (noopMetrics) TrackFrame(f func() error) error { return f() }
