package statuscache

import "fmt"

const keyPrefix = "lectern"

// SnapshotKey returns the redis key holding a segment's status snapshot.
func SnapshotKey(courseID, segmentID int64) string {
	return fmt.Sprintf("%s:segment:%d:%d:status", keyPrefix, courseID, segmentID)
}
