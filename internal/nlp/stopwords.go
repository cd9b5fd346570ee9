package nlp

import "strings"

func wordSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// stopWords are the function words ignored when scoring sentences, keyed by
// lower-case language name.
var stopWords = map[string]map[string]bool{
	"english": wordSet(`a about above after again against all am an and any are as at be
		because been before being below between both but by can could did do does
		doing down during each few for from further had has have having he her here
		hers herself him himself his how i if in into is it its itself just me more
		most my myself no nor not now of off on once only or other our ours
		ourselves out over own same she should so some such than that the their
		theirs them themselves then there these they this those through to too under
		until up very was we were what when where which while who whom why will with
		would you your yours yourself yourselves also said says`),
	"german": wordSet(`aber alle allem allen aller alles als also am an ander andere auch
		auf aus bei bin bis bist da damit dann das dass dein deine dem den der des
		dich die dies diese dieser dieses dir doch dort du durch ein eine einem einen
		einer eines er es etwas euch euer für gegen hab habe haben hat hatte hier
		hin ich ihm ihn ihnen ihr ihre im in ist ja jede jedem jeden jeder jetzt kann
		kein keine man mein meine mich mir mit muss nach nicht nichts noch nun nur ob
		oder ohne sehr sein seine sich sie sind so solche soll sondern um und uns
		unser unter viel vom von vor war waren was weil welche wenn wer werden wie
		wieder will wir wird wo wollen zu zum zur zwar zwischen`),
	"french": wordSet(`ai au aux avec ce ces cet cette dans de des du elle elles en est et
		eu eux il ils je la le les leur leurs lui ma mais me mes moi mon ne nos notre
		nous on ou où par pas pour qu que qui sa se ses son sont sur ta te tes toi
		ton tu un une vos votre vous été être avoir fait plus comme tout tous aussi`),
	"spanish": wordSet(`al algo algunas algunos ante antes como con contra cual cuando de
		del desde donde durante el ella ellas ellos en entre era es esa esas ese eso
		esos esta estaba estas este esto estos fue ha hasta hay la las le les lo los
		más me mi mis mucho muy nada ni no nos nosotros o os otra otro para pero
		poco por porque que quien se sea ser si sin sobre son su sus también te
		tiene todo todos tu tus un una uno unos usted y ya yo`),
}
