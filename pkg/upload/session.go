package upload

// Session is the connection context for one container-backed upload
// attempt.
type Session struct {
	TaskID      string
	ContainerID string
	ADBHost     string
	ADBPort     int
}
