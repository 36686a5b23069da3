// Package quality evaluates generated images before they are kept.
//
// Evaluation runs in two stages. The technical filter inspects pixel
// statistics and rejects images that are blank, blown out, or flat. The
// semantic stage asks a scorer how well the image matches its prompt and
// rejects scores strictly below the run's threshold. A scorer failure
// never rejects an image; the gate passes it through and records that no
// score was available.
package quality
