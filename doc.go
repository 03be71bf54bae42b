// Package storage is a client for the file transfer side of the Storage
// API: uploading local files, exporting tables through asynchronous jobs and
// downloading files back to disk, including sliced files whose content is
// spread over many object-store parts.
//
// Object-store I/O uses short-lived credentials minted by the platform for
// each file. They are fetched per transfer, never cached and redacted from
// logs.
//
// Downloads are atomic: content is written next to the destination under a
// temporary name and renamed into place only once complete, so a failed or
// cancelled transfer leaves nothing under the final name.
//
// Example usage:
//
//	client, err := storage.New("https://connection.keboola.com",
//	    storage.WithToken(os.Getenv("KBC_TOKEN")),
//	    storage.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    return err
//	}
//
//	fileID, err := client.Tables().Export(ctx, "in.c-main.orders",
//	    storage.WithColumns("id", "amount"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	path, err := client.Files().Download(ctx, fileID, "/tmp/export")
package storage
