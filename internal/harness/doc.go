// Package harness runs scripted engine scenarios as executable tests.
//
// A scenario drives a fresh engine through a list of steps and then checks
// assertions against what happened: which subscribers were notified with
// which data, which commits were persisted, and what the final state and
// event registry look like.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: movies_and_books
//	description: "Patching one key prunes dependencies on the keys it leaves out"
//	initial_state:
//	  movies: []
//	  books: []
//	steps:
//	  - subscribe: { event: update_movies, when: [movies] }
//	  - subscribe: { event: update_books, when: [books] }
//	  - patch: { movies: ["Heat"] }
//	  - publish: { event: update_movies, args: ["manual"] }
//	  - publish: { event: update_books }
//	    expect_error: UNKNOWN_EVENT
//	assertions:
//	  - type: fired
//	    event: update_movies
//	    count: 2
//	  - type: fired_with
//	    event: update_movies
//	    data: { movies: ["Heat"] }
//	  - type: final_state
//	    expect: { movies: ["Heat"] }
//
// A scenario may load its initial state from a state document with
// state_file instead of initial_state. Any format the loader package
// understands works (JSON, YAML, CUE, TOML).
//
// # Assertion Types
//
//   - final_state: state contains the expected keys and values
//   - keys: state has exactly the given keys
//   - fired: an event was notified exactly N times
//   - fired_with: an event was notified with the given projection or arguments
//   - fire_order: events were first notified in the given order
//   - dependencies: an event depends on exactly the given keys
//   - event_exists / event_deleted: registry membership
//   - persisted: the store holds N snapshots and the history verifies
//
// # Deterministic Testing
//
// Every run uses a fixed engine id, a logical clock starting at zero and
// an isolated in-memory SQLite store, so traces are identical across runs
// and can be compared against golden files (see RunWithGolden).
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/movies_and_books.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
