package objectclient

import (
	"path"
	"strings"
)

// ObjectKey is the storage layout for a raw upload:
// users/{user}/documents/{document}/{file name}.
func ObjectKey(userID, docID, filename string) string {
	filename = strings.TrimSpace(path.Base(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	if filename == "" || filename == "." || filename == "/" {
		filename = "upload"
	}
	return path.Join("users", userID, "documents", docID, filename)
}

// Location is the s3:// URI recorded for an uploaded object.
func Location(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
