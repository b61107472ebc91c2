// efsign firma, verifica y detecta eventos e-Financeira desde la línea de comandos.
//
// Uso:
//
//	efsign sign evento.xml -o evento-firmado.xml
//	efsign sign-lot lote.xml -o lote-firmado.xml
//	efsign verify lote-firmado.xml
//	efsign detect evento.xml
//	efsign cert inspect --cert declarante.p12
package main

func main() {
	Execute()
}
