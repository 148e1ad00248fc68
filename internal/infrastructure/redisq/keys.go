package redisq

// Key layout. Everything the queue owns lives under "jobs:", the offline
// backlog under "offline:", worker heartbeats under "workers:".
func readyKey(queue string) string {
	return "jobs:" + queue + ":ready"
}

func delayedKey(queue string) string {
	return "jobs:" + queue + ":delayed"
}

func deadKey(queue string) string {
	return "jobs:" + queue + ":dead"
}

func offlineKey(recipientKey string) string {
	return "offline:" + recipientKey
}

func workerKey(workerID string) string {
	return "workers:" + workerID
}
