package interfaces

// Service is a server exposing the daemon to the outside. Start must not
// block, Stop gracefully closes every open connection.
type Service interface {
	Start() error
	Stop()
}
