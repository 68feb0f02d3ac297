package config

import (
	"lendhub.GO/cron/jobs"
)

// Map of job names to job functions
type CronJob struct {
	Schedule string
	Job      func(...string)
}

var CronJobs = map[string]CronJob{
	"expirysweep": {Schedule: "@every 5m", Job: jobs.ExpirySweepJob},
	// Add more jobs here
}
