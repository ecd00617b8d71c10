/*
The sync package implements smartsync's backup algorithm. It makes a
destination directory reflect the union of a sync job's source trees, copying
as little as possible.

A run has two phases:
1) Planning -- The sources and the destination are snapshotted, and every
   relative path is classified as new, changed, unchanged or orphaned.
   Planning never writes anything, so it's shared by dry runs and real runs.
2) Applying -- The plan is handed to an applier. Dry runs use an applier that
   only records what would happen. Real runs copy new and changed files, and
   optionally delete orphans.

When several sources contain the same relative path, the source listed last in
the sync job wins.

The algorithm only deals with regular files. Directories without files aren't
recreated, and anything that isn't a regular file is skipped.

Copies are written to a temporary file next to the destination and renamed
into place, so an interrupted run never leaves a truncated file behind. A
file that fails to copy doesn't stop the run; the job is reported as failed
once every other file has been handled, and files that were copied stay in
place.
*/
package sync
