// Package events defines the typed events the conversation core emits to its
// UI collaborator.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - conversation.*
//   - user_input.*
//   - dialogue.*
//   - assistant_playback.*
//
// conversation events
//
//   - TurnAppended (conversation.turn_appended): a turn was recorded in the
//     conversation log. Emitted exactly once per recorded turn, in log order.
//   - ErrorRaised (conversation.error_raised): a human-readable error. Every
//     surfaced error produces exactly one of these.
//   - StateChanged (conversation.state_changed): the state machine moved
//     between states.
//
// user_input events
//
//   - UserTranscriptUpdated (user_input.transcript_updated): mutable snapshot
//     of the utterance being captured; cleared with an empty transcript when
//     the utterance is finalized or discarded.
//
// dialogue events
//
//   - DialogueConnectionChanged (dialogue.connection_changed): the dialogue
//     channel connected or disconnected.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): reply audio
//     started playing.
//   - AssistantPlaybackEnded (assistant_playback.ended): reply audio stopped,
//     either completed, failed or stopped.
package events
