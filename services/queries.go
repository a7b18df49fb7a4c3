// services/queries.go
package services

// Every statement binds its values; identifiers are fixed at compile time.
const (
	insertGameResultSQL = `
		INSERT INTO game_results (
			gamenumber, gameplayer,
			ones, twos, threes, fours, fives, sixes,
			evens, odds, onepair, twopair, threeofakind, fourofakind,
			fullhouse, smallstraight, largestraight, yahtzee, chance,
			uppertotal, upperbonus, lowertotal, grandtotal, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, now())`

	insertTurnSQL = `
		INSERT INTO turn_results (
			gamenumber, gameplayer, turnnumber, rollcount, category, score, bonus, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?::jsonb, now())`

	// insertDocumentSQL is a no-op on an existing (kind, game_id); the
	// writer then compares documents to tell a replay from a conflict.
	insertDocumentSQL = `
		INSERT INTO game_documents (kind, game_id, player_name, winner, played_at, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?::jsonb, now())
		ON CONFLICT (kind, game_id) DO NOTHING`

	sameDocumentSQL = `
		SELECT document = ?::jsonb
		FROM game_documents
		WHERE kind = ? AND game_id = ?`

	resultsForPlayerSQL = `
		SELECT gamenumber, gameplayer,
			ones, twos, threes, fours, fives, sixes,
			evens, odds, onepair, twopair, threeofakind, fourofakind,
			fullhouse, smallstraight, largestraight, yahtzee, chance,
			uppertotal, upperbonus, lowertotal, grandtotal
		FROM game_results
		WHERE gameplayer = ?
		ORDER BY gamenumber DESC`

	// ownersOfGameSQL resolves the player of turns sent without a name.
	ownersOfGameSQL = `
		SELECT gameplayer
		FROM game_results
		WHERE gamenumber = ?
		ORDER BY gameplayer`

	turnsForPlayerSQL = `
		SELECT gamenumber, gameplayer, turnnumber, rollcount, category, score,
			COALESCE(bonus, 0) AS bonus, payload::text AS payload
		FROM turn_results
		WHERE gameplayer = ?
		ORDER BY gamenumber DESC, turnnumber ASC`

	turnsForGameSQL = `
		SELECT gamenumber, gameplayer, turnnumber, rollcount, category, score,
			COALESCE(bonus, 0) AS bonus, payload::text AS payload
		FROM turn_results
		WHERE gamenumber = ? AND gameplayer = ?
		ORDER BY turnnumber ASC`

	averagesSQL = `
		SELECT gameplayer,
			COUNT(*) AS gamesplayed,
			AVG(grandtotal)::float8 AS averagescore,
			MAX(grandtotal) AS highscore,
			COALESCE(AVG(uppertotal), 0)::float8 AS averageupper,
			COALESCE(AVG(lowertotal), 0)::float8 AS averagelower,
			COUNT(*) FILTER (WHERE yahtzee > 0) AS yahtzeesscored
		FROM game_results
		GROUP BY gameplayer
		ORDER BY gameplayer`

	averagesForPlayerSQL = `
		SELECT gameplayer,
			COUNT(*) AS gamesplayed,
			AVG(grandtotal)::float8 AS averagescore,
			MAX(grandtotal) AS highscore,
			COALESCE(AVG(uppertotal), 0)::float8 AS averageupper,
			COALESCE(AVG(lowertotal), 0)::float8 AS averagelower,
			COUNT(*) FILTER (WHERE yahtzee > 0) AS yahtzeesscored
		FROM game_results
		WHERE gameplayer = ?
		GROUP BY gameplayer`

	documentsByKindSQL = `
		SELECT kind, game_id, player_name, winner, played_at, document::text AS document
		FROM game_documents
		WHERE kind = ?
		ORDER BY played_at DESC, game_id DESC`

	latestDocumentsByKindSQL = `
		SELECT kind, game_id, player_name, winner, played_at, document::text AS document
		FROM game_documents
		WHERE kind = ?
		ORDER BY played_at DESC, game_id DESC
		LIMIT ?`

	documentsByKindForPlayerSQL = `
		SELECT kind, game_id, player_name, winner, played_at, document::text AS document
		FROM game_documents
		WHERE kind = ? AND player_name = ?
		ORDER BY played_at DESC, game_id DESC`
)
