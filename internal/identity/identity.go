package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/storage"
	"github.com/dshills/vecindex/pkg/types"
)

const (
	// CreatedBy marks collections written by this tool.
	CreatedBy = "vecindex"

	// DefaultUser stands in when neither $USER nor $USERNAME is set.
	DefaultUser = "DEFAULT_USER"

	// idLength keeps ids within the store's name length limit.
	idLength = 63
)

// Owner is the user and host a collection belongs to.
type Owner struct {
	User     string
	Hostname string
}

// CurrentOwner reads the owner from the environment and os.Hostname.
func CurrentOwner() (Owner, error) {
	host, err := os.Hostname()
	if err != nil {
		return Owner{}, fmt.Errorf("failed to read hostname: %w", err)
	}
	return Owner{User: currentUser(), Hostname: host}, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return DefaultUser
}

// acceptedUsers is every name this user may have been recorded under.
func (o Owner) acceptedUsers() map[string]bool {
	users := map[string]bool{o.User: true, DefaultUser: true}
	for _, env := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(env); u != "" {
			users[u] = true
		}
	}
	return users
}

// Owns reports whether meta was written by o. The returned reason is set
// when it was not.
func (o Owner) Owns(meta storage.Metadata) (bool, string) {
	switch {
	case meta.String(storage.MetaCreatedBy) != CreatedBy:
		return false, fmt.Sprintf("created-by is %q", meta.String(storage.MetaCreatedBy))
	case !o.acceptedUsers()[meta.String(storage.MetaUsername)]:
		return false, fmt.Sprintf("username is %q", meta.String(storage.MetaUsername))
	case meta.String(storage.MetaHostname) != o.Hostname:
		return false, fmt.Sprintf("hostname is %q", meta.String(storage.MetaHostname))
	}
	return true, ""
}

// Identity is a project's resolved collection id.
type Identity struct {
	ID          string
	ProjectPath string
	Owner       Owner
}

// Resolve computes the collection identity of projectPath for the current
// user and host.
func Resolve(projectPath string) (Identity, error) {
	owner, err := CurrentOwner()
	if err != nil {
		return Identity{}, err
	}
	return ResolveFor(owner, projectPath)
}

// ResolveFor computes the collection identity of projectPath for owner.
func ResolveFor(owner Owner, projectPath string) (Identity, error) {
	abs, err := ExpandPath(projectPath)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:          CollectionID(owner, abs),
		ProjectPath: abs,
		Owner:       owner,
	}, nil
}

// CollectionID hashes "{user}@{hostname}:{absPath}".
func CollectionID(owner Owner, absPath string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s@%s:%s", owner.User, owner.Hostname, absPath)))
	return hex.EncodeToString(sum[:])[:idLength]
}

// ExpandPath expands "~" and environment variables and returns a clean
// absolute path.
func ExpandPath(p string) (string, error) {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand %s: %w", p, err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	return abs, nil
}

// Embedding names the embedding function a collection is built with.
type Embedding struct {
	Name   string
	Params map[string]any
}

// Metadata returns the metadata stamped on a new collection.
func (id Identity) Metadata(emb Embedding) storage.Metadata {
	meta := storage.Metadata{
		storage.MetaPath:              id.ProjectPath,
		storage.MetaHostname:          id.Owner.Hostname,
		storage.MetaCreatedBy:         CreatedBy,
		storage.MetaUsername:          id.Owner.User,
		storage.MetaEmbeddingFunction: emb.Name,
	}
	if params := publicParams(emb.Params); len(params) > 0 {
		meta[storage.MetaEmbeddingParams] = params
	}
	return meta
}

// publicParams drops credentials from embedding params. Collection metadata
// is stored in plain text, and a rotated key does not change the vectors.
func publicParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if k == embedder.ParamAPIKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Ensure fetches the project's collection, creating it when create is set.
// A missing collection without create returns types.ErrNotFound. A
// collection whose owner metadata does not match returns
// *types.CollisionError and is left untouched.
func Ensure(ctx context.Context, store storage.CollectionStore, id Identity, emb Embedding, create bool) (storage.Collection, error) {
	var (
		coll storage.Collection
		err  error
	)
	if create {
		coll, err = store.GetOrCreateCollection(ctx, id.ID, id.Metadata(emb))
	} else {
		coll, err = store.GetCollection(ctx, id.ID)
	}
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("no collection for %s: %w", id.ProjectPath, err)
		}
		return nil, err
	}

	if ok, reason := id.Owner.Owns(coll.Metadata()); !ok {
		return nil, &types.CollisionError{Collection: id.ID, Reason: reason}
	}
	return coll, nil
}

// VerifyEmbedding compares the collection's recorded embedding function with
// emb. A different function name returns false with a message. Differing
// params alone return true with a warning message. A collection with nothing
// recorded is compatible.
func VerifyEmbedding(coll storage.Collection, emb Embedding) (bool, string) {
	meta := coll.Metadata()
	recorded := meta.String(storage.MetaEmbeddingFunction)
	if recorded == "" {
		return true, ""
	}
	if recorded != emb.Name {
		return false, fmt.Sprintf("collection was built with embedding function %q but %q is configured", recorded, emb.Name)
	}

	params := meta.Params()
	if params == nil {
		return true, ""
	}
	if !sameParams(params, emb.Params) {
		return true, fmt.Sprintf("embedding params of %q differ from the ones the collection was built with; results may be inconsistent", recorded)
	}
	return true, ""
}

// sameParams compares through JSON so that numbers decoded from the store
// (float64) equal configured ints.
func sameParams(a, b map[string]any) bool {
	a, b = publicParams(a), publicParams(b)
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	var na, nb any
	_ = json.Unmarshal(ja, &na)
	_ = json.Unmarshal(jb, &nb)
	return reflect.DeepEqual(na, nb)
}
