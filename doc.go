// Package planguard embeds the access and quota policy engine in a Go process.
//
// It answers three questions for a multi-tenant LLM gateway: may this role
// perform a capability, may this plan and role invoke a model, and has the
// account crossed a usage threshold. Usage is metered in an in-process ledger
// or in Redis/Valkey when several replicas share counters.
//
//	client, _ := planguard.New(ctx, planguard.WithRedis("localhost:6379", ""))
//	defer client.Close(ctx)
//
//	d := client.CheckModelAccess("MEMBER", "FREE", "gpt-4")
//	if !d.Allowed {
//	    // d.Reason == "PlanUpgradeRequired", d.UpgradeTo == "starter"
//	}
//
//	alerts, err := client.MeterUsage(ctx, "acct-42", "free",
//	    planguard.Delta{Requests: 1, Tokens: 812}, 0)
//
// Denials are values, not errors. Errors are reserved for unknown plans on
// the metering path, invalid deltas or thresholds, and ledger outages
// (check with errors.Is and IsRetryable).
package planguard
