// Package minio provides a read-only BlobStore over the MinIO client, for
// MinIO and other S3-compatible services (Ceph, Garage, SeaweedFS).
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "circuits", "sim-2024/")
//	spikes, err := report.OpenSpikes(ctx, "spikes.sonata", sonata.WithStore(store))
package minio
