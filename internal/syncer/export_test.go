package syncer

var Backoff = backoff //nolint:gochecknoglobals // test hook
