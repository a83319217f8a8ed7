package records

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func refKey(ref *Remote) *string {
	if ref == nil {
		return nil
	}
	return nullable(ref.Key)
}

func remoteFor(bucket string, key *string) *Remote {
	if key == nil || *key == "" {
		return nil
	}
	return &Remote{Bucket: bucket, Key: *key}
}
