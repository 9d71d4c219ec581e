package blockserver

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/psanford/sqlite3vfs"

	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
	"github.com/FocuswithJustin/memvfs/core/objvfs"
)

// dialTestServer starts a server over an in-memory store and connects
// a client to it.
func dialTestServer(t *testing.T) (*Client, *objvfs.MemStore) {
	t.Helper()

	store := objvfs.NewMemStore()
	srv := httptest.NewServer(NewServer(store))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(url)
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, store
}

func TestClientRoundTrip(t *testing.T) {
	client, _ := dialTestServer(t)

	if _, err := client.Get("missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}

	payload := bytes.Repeat([]byte{0x5a}, 1000)
	if err := client.Put("db/0", payload); err != nil {
		t.Fatalf("Put() = %v", err)
	}

	got, err := client.Get("db/0")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload does not round trip")
	}

	client.Put("db/1", []byte("b"))
	client.Put("other/0", []byte("o"))

	infos, err := client.List("db/")
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "db/0" || infos[1].Key != "db/1" {
		t.Errorf("List() = %v, want db/0 then db/1", infos)
	}
	if infos[0].Size != 1000 {
		t.Errorf("infos[0].Size = %d, want 1000", infos[0].Size)
	}

	if err := client.Delete("db/0"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, err := client.Get("db/0"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestVFSOverRemoteStore(t *testing.T) {
	client, store := dialTestServer(t)

	v := objvfs.New(client, objvfs.Options{Name: "objvfs-remote"})
	f, _, err := v.Open("remote.db", sqlite3vfs.OpenCreate|sqlite3vfs.OpenReadWrite)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer f.Close()

	content := bytes.Repeat([]byte("remote"), 30000)
	if _, err := f.WriteAt(content, 0); err != nil {
		t.Fatalf("WriteAt() = %v", err)
	}

	p := make([]byte, len(content))
	if _, err := f.ReadAt(p, 0); err != nil {
		t.Fatalf("ReadAt() = %v", err)
	}
	if !bytes.Equal(p, content) {
		t.Error("content does not round trip through the remote store")
	}

	// The blocks actually landed in the server-side store.
	if store.Len() == 0 {
		t.Error("server-side store is empty")
	}
	if _, err := store.Get("remote.db/0"); err != nil {
		t.Errorf("Get(remote.db/0) = %v, want nil", err)
	}
}
