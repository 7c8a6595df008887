// Package wire defines the HTTP header contract shared by the dispatcher
// and the inbound middleware.
package wire

// Headers marking encrypted traffic between services.
const (
	// HeaderCommunication marks a request or response body as an encrypted
	// envelope when set to ValueEncrypted.
	HeaderCommunication = "X-Service-Communication"

	// HeaderEncryptionService names the service whose key sealed the body.
	// The receiver looks this name up in its key ring to decrypt.
	HeaderEncryptionService = "X-Encryption-Service"

	// HeaderEncryptResponse asks the responder to encrypt its response body
	// with its own key when set to ValueTrue.
	HeaderEncryptResponse = "X-Encrypt-Response"

	// HeaderRequestID carries the dispatcher-assigned request identifier for
	// correlating events across services.
	HeaderRequestID = "X-Request-ID"

	// ValueEncrypted is the value of HeaderCommunication on encrypted bodies
	ValueEncrypted = "encrypted"

	// ValueTrue is the value of HeaderEncryptResponse when set
	ValueTrue = "true"
)
