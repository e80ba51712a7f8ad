package smb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// ShareType is MS-SMB2 2.2.10's one-byte share type field.
type ShareType uint8

const (
	ShareTypeDisk  ShareType = 0x01
	ShareTypePipe  ShareType = 0x02
	ShareTypePrint ShareType = 0x03
)

// ShareFlags is MS-SMB2 2.2.10's share capability/caching bit field
// (only the bits the client inspects are named).
type ShareFlags uint32

const (
	ShareFlagDFS          ShareFlags = 0x00000001
	ShareFlagDFSRoot      ShareFlags = 0x00000002
	ShareFlagEncryptData  ShareFlags = 0x00008000
	ShareFlagCompressData ShareFlags = 0x00100000
)

func (f ShareFlags) IsDFS() bool              { return f&(ShareFlagDFS|ShareFlagDFSRoot) != 0 }
func (f ShareFlags) EncryptionRequired() bool { return f&ShareFlagEncryptData != 0 }

// Tree is a connected share (component C10), grounded on the teacher's
// single merged Connection.TreeConnect/TreeDisconnect pair, split out into
// its own type per spec.md's Connection/Session/Tree/Handle layering.
type Tree struct {
	session       *Session
	id            uint32
	share         UNCPath
	shareType     ShareType
	shareFlags    ShareFlags
	maximalAccess uint32
	capabilities  uint32
}

// ID returns the tree id used in request headers against this share.
func (t *Tree) ID() uint32 { return t.id }

// ShareType reports whether the connected share is a disk, named pipe, or printer.
func (t *Tree) ShareType() ShareType { return t.shareType }

// RequiresEncryption reports whether this share mandates per-message
// encryption independent of the session-wide policy (MS-SMB2 3.2.5.3.1).
func (t *Tree) RequiresEncryption() bool { return t.shareFlags.EncryptionRequired() }

// TreeConnect connects share (a UNC path naming server+share) within the
// session, per spec.md §4.9. When cfg.DFS is enabled and the server answers
// STATUS_PATH_NOT_COVERED, it consults cfg.Resolver and retries once against
// the resolved path, per the DFS passthrough supplemented from
// original_source/smb/src/client/config.rs (see DESIGN.md §10).
func (s *Session) TreeConnect(ctx context.Context, cfg ClientConfig, share UNCPath) (*Tree, error) {
	tree, err := s.treeConnectOnce(ctx, share)
	if err == nil {
		return tree, nil
	}

	var statusErr *StatusError
	if !cfg.DFS || cfg.Resolver == nil || !errors.As(err, &statusErr) || statusErr.Status != StatusPathNotCovered {
		return nil, err
	}

	resolved, rerr := cfg.Resolver.Resolve(share)
	if rerr != nil {
		return nil, fmt.Errorf("%w: dfs resolve: %v", ErrUnexpectedStatus, rerr)
	}
	return s.treeConnectOnce(ctx, resolved)
}

func (s *Session) treeConnectOnce(ctx context.Context, share UNCPath) (*Tree, error) {
	body := encodeTreeConnectRequest(share.String())
	respHdr, respBody, err := s.roundtrip(ctx, CommandTreeConnect, body, "tree_connect")
	if err != nil {
		return nil, err
	}

	shareType, shareFlags, maxAccess, caps, err := decodeTreeConnectResponse(respBody)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		session:       s,
		id:            respHdr.TreeID(),
		share:         share,
		shareType:     shareType,
		shareFlags:    shareFlags,
		maximalAccess: maxAccess,
		capabilities:  caps,
	}
	s.trees[t.id] = t
	return t, nil
}

func encodeTreeConnectRequest(path string) []byte {
	u16 := utf16leEncode(path)
	buf := make([]byte, 8+len(u16))
	binary.LittleEndian.PutUint16(buf[0:2], 9)
	binary.LittleEndian.PutUint16(buf[2:4], 0) // flags
	binary.LittleEndian.PutUint16(buf[4:6], HeaderSize+8)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(u16)))
	copy(buf[8:], u16)
	return buf
}

func decodeTreeConnectResponse(body []byte) (shareType ShareType, flags ShareFlags, maximalAccess, capabilities uint32, err error) {
	if len(body) < 16 {
		return 0, 0, 0, 0, fmt.Errorf("%w: short tree_connect response", ErrUnexpectedContent)
	}
	shareType = ShareType(body[2])
	flags = ShareFlags(binary.LittleEndian.Uint32(body[4:8]))
	capabilities = binary.LittleEndian.Uint32(body[8:12])
	maximalAccess = binary.LittleEndian.Uint32(body[12:16])
	return shareType, flags, maximalAccess, capabilities, nil
}

// TreeDisconnect tears down tree (spec.md §4.9's terminal state).
func (t *Tree) TreeDisconnect(ctx context.Context) error {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint16(body[0:2], 4)
	_, _, err := t.session.roundtripTree(ctx, t, CommandTreeDisconnect, body, "tree_disconnect")
	delete(t.session.trees, t.id)
	return err
}
