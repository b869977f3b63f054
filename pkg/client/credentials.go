package client

import "github.com/pdsmart/mdc/pkg/protocol"

// Credentials is the client-facing name for the wire credential payload.
// The type itself lives in pkg/protocol so pkg/server can decode the same
// structure without depending on pkg/client.
type Credentials = protocol.Credentials
