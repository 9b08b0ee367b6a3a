/*
Package status manages the destination tree and tracks what happened to each file.

	            +-------------+
	            |   Status    |
	            | (Dest tree) |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +-----+-----+
	|   Files   |           | Progress  |
	| (afero)   |           |  (logs)   |
	+-----------+           +-----------+

🎯 Purpose:
- Mirrors source directories under the destination root
- Copies plain files byte for byte, keeping permissions and modification time
- Answers "does the decoded file already exist" for resumable runs
- Tracks per-file outcomes (decoded, copied, skipped, failed)
- Formats progress messages

🔄 Flow:
1. The orchestrator creates the mirrored directory
2. Plain files are copied through CopyFile
3. Encoded files are checked with FileExists before upload
4. Every outcome is recorded with TrackFile
5. Progress is reported after each directory

🤝 Interfaces:
- FileManager: destination file operations
- StatusReporter: outcome tracking and progress
- FileFormatter: message formatting

All operations go through an afero.Fs, so tests run against afero.NewMemMapFs().

🔍 Example:

	mgr := status.New(afero.NewOsFs(), "site_decoded", zerolog.Ctx(ctx))

	// Mirror and copy
	err := mgr.CreateDir(ctx, "app")
	err = mgr.CopyFile(ctx, "site/app/readme.txt", "app/readme.txt")

	// Resumability
	exists, err := mgr.FileExists(ctx, "app/index.php")

	// Tracking
	mgr.TrackFile(ctx, "app/index.php", status.FileInfo{Status: status.StatusDecoded})
*/
package status
