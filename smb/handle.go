package smb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/relsmb/smb2/smb/info"
)

// DesiredAccess is MS-SMB2 2.2.13.1's access mask requested by Create.
type DesiredAccess uint32

const (
	AccessReadData      DesiredAccess = 0x00000001
	AccessWriteData     DesiredAccess = 0x00000002
	AccessAppendData    DesiredAccess = 0x00000004
	AccessReadAttributes DesiredAccess = 0x00000080
	AccessDelete        DesiredAccess = 0x00010000
	AccessGenericRead   DesiredAccess = 0x80000000
	AccessGenericWrite  DesiredAccess = 0x40000000
	AccessGenericAll    DesiredAccess = 0x10000000
)

// ShareAccess is MS-SMB2 2.2.13's share-mode bit field.
type ShareAccess uint32

const (
	ShareAccessRead   ShareAccess = 0x00000001
	ShareAccessWrite  ShareAccess = 0x00000002
	ShareAccessDelete ShareAccess = 0x00000004
)

// CreateDisposition is MS-SMB2 2.2.13's open-or-create action.
type CreateDisposition uint32

const (
	DispositionSupersede   CreateDisposition = 0x00000000
	DispositionOpen        CreateDisposition = 0x00000001
	DispositionCreate      CreateDisposition = 0x00000002
	DispositionOpenIf      CreateDisposition = 0x00000003
	DispositionOverwrite   CreateDisposition = 0x00000004
	DispositionOverwriteIf CreateDisposition = 0x00000005
)

// CreateOptions is MS-SMB2 2.2.13's create-option bit field (only the bits
// the client surfaces directly are named).
type CreateOptions uint32

const (
	OptionDirectoryFile    CreateOptions = 0x00000001
	OptionNonDirectoryFile CreateOptions = 0x00000040
	OptionDeleteOnClose    CreateOptions = 0x00001000
)

// OplockLevel is MS-SMB2 2.2.13's RequestedOplockLevel/OplockLevel byte.
type OplockLevel uint8

const (
	OplockLevelNone      OplockLevel = 0x00
	OplockLevelII        OplockLevel = 0x01
	OplockLevelExclusive OplockLevel = 0x08
	OplockLevelBatch     OplockLevel = 0x09
	OplockLevelLease     OplockLevel = 0xff
)

// FileID is MS-SMB2 2.2.14.1's 16-byte opaque handle identifier.
type FileID [16]byte

func (f FileID) IsZero() bool { return f == FileID{} }

// CreateRequest carries spec.md §4.10's Create parameters (disposition,
// desired access, share mode, options, attributes) for one path under a Tree.
type CreateRequest struct {
	Path              string
	DesiredAccess     DesiredAccess
	FileAttributes    FileAttributes
	ShareAccess       ShareAccess
	CreateDisposition CreateDisposition
	CreateOptions     CreateOptions
	OplockLevel       OplockLevel
}

// FileAttributes mirrors info.FileAttributes for the request side, kept as
// a distinct alias so callers of smb.CreateRequest don't need to import
// smb/info just to set an attribute bit.
type FileAttributes = info.FileAttributes

const (
	FileAttributeNormal    = info.FileAttributeNormal
	FileAttributeDirectory = info.FileAttributeDirectory
	FileAttributeReadonly  = info.FileAttributeReadonly
)

// ResourceKind discriminates the Resource a Create opened, per spec.md
// §4.10's "Resource { File, Directory }" facade.
type ResourceKind int

const (
	ResourceFile ResourceKind = iota
	ResourceDirectory
)

// Resource is an open handle on tree, discriminated by the server's returned
// file_attributes.directory bit.
type Resource struct {
	tree *Tree
	id   FileID
	kind ResourceKind

	CreateAction   uint32
	CreationTime   info.FileTime
	LastAccessTime info.FileTime
	LastWriteTime  info.FileTime
	ChangeTime     info.FileTime
	AllocationSize uint64
	EndOfFile      uint64
	FileAttributes info.FileAttributes
}

// ID returns the handle's 16-byte SMB2 file_id.
func (r *Resource) ID() FileID { return r.id }

// Kind reports whether the handle is a file or a directory.
func (r *Resource) Kind() ResourceKind { return r.kind }

// Create opens or creates path within t (spec.md §4.10). The returned
// Resource's Kind reflects the server's file_attributes.directory bit, not
// the caller's requested CreateOptions.
func (t *Tree) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	body := encodeCreateRequest(req)
	_, respBody, err := t.session.roundtripTree(ctx, t, CommandCreate, body, "create")
	if err != nil {
		return nil, err
	}
	res, err := decodeCreateResponse(respBody)
	if err != nil {
		return nil, err
	}
	res.tree = t
	return res, nil
}

func encodeCreateRequest(req CreateRequest) []byte {
	name := utf16leEncode(req.Path)
	buf := make([]byte, 56+len(name))
	binary.LittleEndian.PutUint16(buf[0:2], 57)
	buf[2] = 0 // SecurityFlags
	buf[3] = byte(req.OplockLevel)
	binary.LittleEndian.PutUint32(buf[4:8], 0x02) // ImpersonationLevel: Impersonation
	binary.LittleEndian.PutUint32(buf[24:28], uint32(req.DesiredAccess))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(req.FileAttributes))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(req.ShareAccess))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(req.CreateDisposition))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(req.CreateOptions))
	binary.LittleEndian.PutUint16(buf[44:46], HeaderSize+56)
	binary.LittleEndian.PutUint16(buf[46:48], uint16(len(name)))
	// CreateContextsOffset/Length left zero: no create contexts are sent.
	copy(buf[56:], name)
	return buf
}

func decodeCreateResponse(body []byte) (*Resource, error) {
	if len(body) < 88 {
		return nil, fmt.Errorf("%w: short create response", ErrUnexpectedContent)
	}
	r := &Resource{
		CreateAction:   binary.LittleEndian.Uint32(body[4:8]),
		CreationTime:   info.FileTime(binary.LittleEndian.Uint64(body[8:16])),
		LastAccessTime: info.FileTime(binary.LittleEndian.Uint64(body[16:24])),
		LastWriteTime:  info.FileTime(binary.LittleEndian.Uint64(body[24:32])),
		ChangeTime:     info.FileTime(binary.LittleEndian.Uint64(body[32:40])),
		AllocationSize: binary.LittleEndian.Uint64(body[40:48]),
		EndOfFile:      binary.LittleEndian.Uint64(body[48:56]),
		FileAttributes: info.FileAttributes(binary.LittleEndian.Uint32(body[56:60])),
	}
	copy(r.id[:], body[64:80])
	if r.FileAttributes.IsDirectory() {
		r.kind = ResourceDirectory
	} else {
		r.kind = ResourceFile
	}
	return r, nil
}

// Close closes the handle (spec.md §4.10: "closed on drop/teardown by
// sending Close").
func (r *Resource) Close(ctx context.Context) error {
	body := make([]byte, 24)
	binary.LittleEndian.PutUint16(body[0:2], 24)
	copy(body[8:24], r.id[:])
	_, _, err := r.tree.session.roundtripTree(ctx, r.tree, CommandClose, body, "close")
	return err
}
