/*
Package operation drives a run over a source tree.

	+-------------+      +------------+      +-------------+
	|  classify   | ---> | operation  | ---> |   status    |
	| (what/where)|      | (batches)  |      |(destination)|
	+-------------+      +-----+------+      +-------------+
	                           |
	                     +-----+------+
	                     |   remote   |
	                     |  (decoder) |
	                     +------------+

🎯 Purpose:
- Walk the source tree one directory at a time
- Copy plain files straight into the mirrored destination
- Send encoded files to the decoder service in batches and unpack the results
- Keep a report of everything that was not decoded

🔄 Decode flow:
1. Log in, then empty whatever an earlier run left in the remote queue
2. Count encoded files so progress has a total
3. Per directory: create the mirror, copy plain files, skip encoded files that
   already have a destination copy (unless overwriting)
4. Per batch: upload, download when anything succeeded, always clear the queue
5. Wait between batches through the Pacer

⚡ Failure handling:
- Only a bad source or a failed login stops a run before it starts
- A failed batch marks its files as not decoded and the run moves on
- Cancelling the context lets the current batch finish, then every file that
  was not started is reported as not decoded

🔍 Example:

	op, err := operation.NewDecodeOperation(operation.Options{...})
	rep, err := operation.NewRunner(&logger, os.Stdout, fs, "").Run(ctx, op)
*/
package operation
