// Package batch runs Geoapify batch jobs.
//
// Large input lists are split into chunks of at most MaxBatchLen items, each
// chunk is submitted as one asynchronous job, and all jobs are polled
// concurrently until their results are ready. Results come back in input
// order whatever order the jobs finish in.
//
// Example:
//
//	orch, err := batch.New(batch.DefaultConfig(apiKey))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := orch.SubmitAndCollect(ctx, batch.APIGeocode,
//	    batch.FromText([]string{"Berlin", "Paris"}), map[string]string{"lang": "en"}, 500)
//
// Submission is sequential and stops at the first failure; the returned
// *JobCreationError or *TransportError names the input range to resubmit.
// Polling never gives up on a pending or malformed response; bound it with a
// context deadline or Config.MaxPollAttempts.
//
// Jobs returned by Submit are plain values. They can be stored (see package
// jobstore) and passed to Collect later.
package batch
