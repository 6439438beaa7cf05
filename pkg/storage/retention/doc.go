// Package retention prunes old evaluation history.
//
// The current evaluation of a dossier is never pruned; only history entries
// older than the retention period are. Pruning runs on a cron schedule:
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 365,
//	    PruneSchedule: "0 3 * * *",
//	})
//	if err := pruner.Scheduler().Start(ctx); err != nil {
//	    return err
//	}
package retention
