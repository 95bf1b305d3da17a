package redis

// IncrementHits exposes the guarded hit increment to tests.
var IncrementHits = (*Store).incrementHits
