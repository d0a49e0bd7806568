package adapters

// CheckVersion validates an expected-version precondition against the current
// state of a stream. currentVersion is the stream's high-water mark as seen
// by the caller's transaction; exists reports whether the stream has any
// events at all.
func CheckVersion(streamID string, expectedVersion, currentVersion int64, exists bool) error {
	switch {
	case expectedVersion == AnyVersion:
		return nil
	case expectedVersion == NoStream:
		if exists {
			return NewConcurrencyError(streamID, NoStream, currentVersion)
		}
		return nil
	case expectedVersion == StreamExists:
		if !exists {
			return NewConcurrencyError(streamID, StreamExists, 0)
		}
		return nil
	case expectedVersion > 0:
		if !exists || currentVersion != expectedVersion {
			return NewConcurrencyError(streamID, expectedVersion, currentVersion)
		}
		return nil
	default:
		return ErrInvalidVersion
	}
}
