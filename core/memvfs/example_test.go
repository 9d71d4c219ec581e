package memvfs_test

import (
	"bytes"
	"fmt"

	"github.com/FocuswithJustin/memvfs/core/memvfs"
)

func ExampleVFS_Deserialize() {
	v := memvfs.New(memvfs.Options{Name: "memvfs-example"})

	// Load a database image into the VFS, then stream it back out.
	if err := v.Deserialize("cool.db", bytes.NewReader([]byte("database image"))); err != nil {
		panic(err)
	}

	var out bytes.Buffer
	n, err := v.SerializeTo("cool.db", &out)
	if err != nil {
		panic(err)
	}
	fmt.Println(n, out.String())
	// Output: 14 database image
}
