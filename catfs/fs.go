package catfs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/fingerprint"
	"github.com/humanmadecert/hmcert/logging"
	"github.com/humanmadecert/hmcert/upload"
)

// Names of the files inside each track directory.
const (
	TrackFile  = "track.json"
	StatusFile = "status"
	ObjectsDir = "objects"
)

// Catalogue is the read side of the track catalogue.
type Catalogue interface {
	AllTracks(ctx context.Context) ([]catalogue.Track, error)
	TrackByHash(ctx context.Context, hash string) (*catalogue.Track, error)
}

// Objects resolves stored upload objects. *storage.LocalStore implements it.
type Objects interface {
	List(prefix string) ([]string, error)
	Path(key string) (string, error)
}

// FS is a read-only view of the catalogue:
//
//	/<folder hash>/track.json
//	/<folder hash>/status
//	/<folder hash>/objects/...   (when an object store is attached)
type FS struct {
	cat     Catalogue
	objects Objects
	inodes  *inodeTable
	log     *zap.Logger
	started time.Time
}

// New returns a filesystem over cat. objects may be nil.
func New(cat Catalogue, objects Objects, log *zap.Logger) *FS {
	return &FS{
		cat:     cat,
		objects: objects,
		inodes:  newInodeTable(),
		log:     logging.OrNop(log),
		started: time.Now(),
	}
}

// Root returns the root directory node.
func (f *FS) Root() (fs.Node, error) {
	return &rootDir{fs: f}, nil
}

func (f *FS) dirAttr(p string, a *fuse.Attr) {
	a.Inode = f.inodes.For(p)
	a.Mode = os.ModeDir | 0o555
	a.Mtime = f.started
	a.Ctime = f.started
	a.Atime = time.Now()
}

type rootDir struct {
	fs *FS
}

func (d *rootDir) Attr(ctx context.Context, a *fuse.Attr) error {
	d.fs.dirAttr("/", a)
	return nil
}

func (d *rootDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	if !fingerprint.IsValid(name) {
		return nil, syscall.ENOENT
	}
	t, err := d.fs.cat.TrackByHash(ctx, name)
	if errors.Is(err, catalogue.ErrNotFound) {
		return nil, syscall.ENOENT
	}
	if err != nil {
		d.fs.log.Warn("track lookup failed", zap.String("hash", name), zap.Error(err))
		return nil, syscall.EIO
	}
	return &trackDir{fs: d.fs, track: *t}, nil
}

func (d *rootDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	tracks, err := d.fs.cat.AllTracks(ctx)
	if err != nil {
		d.fs.log.Warn("list tracks failed", zap.Error(err))
		return nil, syscall.EIO
	}
	dirents := make([]fuse.Dirent, 0, len(tracks))
	for _, t := range tracks {
		if t.FolderHash == "" {
			continue
		}
		dirents = append(dirents, fuse.Dirent{
			Inode: d.fs.inodes.For("/" + t.FolderHash),
			Name:  t.FolderHash,
			Type:  fuse.DT_Dir,
		})
	}
	return dirents, nil
}

type trackDir struct {
	fs    *FS
	track catalogue.Track
}

func (d *trackDir) path() string { return "/" + d.track.FolderHash }

func (d *trackDir) Attr(ctx context.Context, a *fuse.Attr) error {
	d.fs.dirAttr(d.path(), a)
	a.Mtime = d.track.CreatedAt
	a.Ctime = d.track.CreatedAt
	return nil
}

func (d *trackDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	switch name {
	case TrackFile:
		data, err := json.MarshalIndent(d.track, "", "  ")
		if err != nil {
			return nil, syscall.EIO
		}
		return d.static(name, append(data, '\n')), nil
	case StatusFile:
		return d.static(name, []byte(string(d.track.Verification)+"\n")), nil
	case ObjectsDir:
		if d.fs.objects != nil {
			return &objectDir{fs: d.fs, node: d.path() + "/" + ObjectsDir, prefix: d.prefix()}, nil
		}
	}
	return nil, syscall.ENOENT
}

func (d *trackDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	dirents := []fuse.Dirent{
		{Inode: d.fs.inodes.For(d.path() + "/" + TrackFile), Name: TrackFile, Type: fuse.DT_File},
		{Inode: d.fs.inodes.For(d.path() + "/" + StatusFile), Name: StatusFile, Type: fuse.DT_File},
	}
	if d.fs.objects != nil {
		dirents = append(dirents, fuse.Dirent{
			Inode: d.fs.inodes.For(d.path() + "/" + ObjectsDir),
			Name:  ObjectsDir,
			Type:  fuse.DT_Dir,
		})
	}
	return dirents, nil
}

func (d *trackDir) static(name string, data []byte) *staticFile {
	return &staticFile{
		inode:    d.fs.inodes.For(d.path() + "/" + name),
		data:     data,
		modified: d.track.CreatedAt,
	}
}

func (d *trackDir) prefix() string {
	return upload.Prefix(d.track.Email, d.track.ArtistName, d.track.Title, d.track.FolderHash)
}

// staticFile is a small generated file held in memory.
type staticFile struct {
	inode    uint64
	data     []byte
	modified time.Time
}

func (f *staticFile) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = f.inode
	a.Mode = 0o444
	a.Size = uint64(len(f.data))
	a.Mtime = f.modified
	a.Ctime = f.modified
	a.Atime = time.Now()
	return nil
}

func (f *staticFile) ReadAll(ctx context.Context) ([]byte, error) {
	return f.data, nil
}

// objectDir lists stored objects below prefix.
type objectDir struct {
	fs     *FS
	node   string
	prefix string // storage key prefix, ending in "/"
}

func (d *objectDir) Attr(ctx context.Context, a *fuse.Attr) error {
	d.fs.dirAttr(d.node, a)
	return nil
}

func (d *objectDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	keys, err := d.fs.objects.List(d.prefix)
	if err != nil {
		return nil, syscall.EIO
	}
	key := d.prefix + name
	for _, k := range keys {
		if k == key {
			p, err := d.fs.objects.Path(k)
			if err != nil {
				return nil, syscall.EIO
			}
			return &objectFile{inode: d.fs.inodes.For(d.node + "/" + name), path: p}, nil
		}
		if strings.HasPrefix(k, key+"/") {
			return &objectDir{fs: d.fs, node: d.node + "/" + name, prefix: key + "/"}, nil
		}
	}
	return nil, syscall.ENOENT
}

func (d *objectDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	keys, err := d.fs.objects.List(d.prefix)
	if err != nil {
		return nil, syscall.EIO
	}
	var dirents []fuse.Dirent
	dirs := make(map[string]bool)
	for _, k := range keys {
		rel := strings.TrimPrefix(k, d.prefix)
		first, _, nested := strings.Cut(rel, "/")
		if nested {
			dirs[first] = true
			continue
		}
		dirents = append(dirents, fuse.Dirent{
			Inode: d.fs.inodes.For(d.node + "/" + first),
			Name:  first,
			Type:  fuse.DT_File,
		})
	}
	names := make([]string, 0, len(dirs))
	for dir := range dirs {
		names = append(names, dir)
	}
	sort.Strings(names)
	for _, dir := range names {
		dirents = append(dirents, fuse.Dirent{
			Inode: d.fs.inodes.For(path.Join(d.node, dir)),
			Name:  dir,
			Type:  fuse.DT_Dir,
		})
	}
	return dirents, nil
}

// objectFile serves a stored object straight from disk.
type objectFile struct {
	inode uint64
	path  string
}

func (f *objectFile) Attr(ctx context.Context, a *fuse.Attr) error {
	info, err := os.Stat(f.path)
	if err != nil {
		return syscall.ENOENT
	}
	a.Inode = f.inode
	a.Mode = 0o444
	a.Size = uint64(info.Size())
	a.Mtime = info.ModTime()
	a.Ctime = info.ModTime()
	a.Atime = time.Now()
	return nil
}

func (f *objectFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fh, err := os.Open(f.path)
	if err != nil {
		return syscall.EIO
	}
	defer fh.Close()
	buf := make([]byte, req.Size)
	n, err := fh.ReadAt(buf, req.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return syscall.EIO
	}
	resp.Data = buf[:n]
	return nil
}
