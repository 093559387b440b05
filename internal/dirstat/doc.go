// Package dirstat computes recursive directory statistics.
//
// Engine walks a tree sequentially through an fsaccess.Accessor and honours
// context cancellation before every listing and before every child, which
// keeps the time-bounded hover calculations responsive. Run is the unbounded
// variant used for explicit calculations: it walks with fastwalk for
// parallel traversal and reports progress while it goes.
package dirstat
