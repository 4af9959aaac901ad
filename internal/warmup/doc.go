// Package warmup implements account warmup: gradually ramping a new sending
// identity's daily volume along a named strategy schedule while gating the
// ramp on observed delivery quality (bounce rate, spam complaints, delivery
// rate).
//
// The package is a library with four independent entry points (daily job
// scheduling, job execution, interaction-simulation sweeps, and health
// monitoring) driven by an external periodic invoker (internal/worker).
// All state lives in the stores behind the repository interfaces declared
// here, so multiple stateless instances may run concurrently.
//
// Repository implementations live in repository/postgres/ and
// repository/memory/.
package warmup
