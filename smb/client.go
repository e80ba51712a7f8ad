package smb

import "context"

// Connect dials opts.Host and runs SessionSetup to completion, generalizing
// the teacher's single-call `smb.NewConnection(options)` entry point (see
// main.go's testNegotiation/testAuthentication) into an explicit
// Connection/Session pair matching this repo's layered API.
func Connect(ctx context.Context, opts Options) (*Connection, *Session, error) {
	cfg := opts.Config
	if cfg.Connection.Port == 0 {
		cfg.Connection.Port = opts.Port
	}

	conn, err := Dial(ctx, opts.Host, cfg.Connection)
	if err != nil {
		return nil, nil, err
	}

	sess, err := NewSession(ctx, conn, opts.Initiator, cfg.AllowUnsignedGuestAccess)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, sess, nil
}
