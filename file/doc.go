// Package file provides durable storage for session directories.
//
// A session directory is addressed by a storage key and holds exactly one
// record file (DefaultFileName unless configured otherwise) plus any files
// the application chooses to keep next to it. The Storage interface covers
// the operations the session store needs: prepare the root, read and write
// the record file, list directories and remove a directory recursively.
//
// Two backends are included:
//   - LocalStorage keeps directories on the local filesystem, writes record
//     files atomically (temporary file plus rename) and applies permissions
//     explicitly instead of relying on the process umask.
//   - S3Storage maps directories to object prefixes in an S3 bucket.
//
// Example usage with LocalStorage:
//
//	import "github.com/dmitrymomot/sessionfolder/file"
//
//	storage, err := file.NewLocalStorage("/var/lib/sessions",
//	    file.WithDirMode(0o750),
//	    file.WithSync(true),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := storage.Init(ctx); err != nil {
//	    return err // wraps file.ErrInit
//	}
//
//	err = storage.Write(ctx, key, []byte(`{"sid":"abc"}`))
//
// Example usage with S3Storage:
//
//	storage, err := file.NewS3Storage(ctx, file.S3Config{
//	    Bucket: "my-bucket",
//	    Region: "us-east-1",
//	    Prefix: "sessions",
//	})
//	if err != nil {
//	    return err
//	}
//
// Keys are validated before use; anything that could escape the root
// (separators, leading dots) is rejected with ErrInvalidKey.
package file
